package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bind ties a flag to the viper key of a setting. A flag left at its zero
// default does not shadow the environment.
func bind(v *viper.Viper, f *pflag.Flag, setting string) {
	if err := v.BindPFlag(strings.ToLower(setting), f); err != nil {
		panic(err)
	}
}
