package crew

import (
	"strings"

	"github.com/antgroup/datacrew/schema"
)

// Team is the set of agents a crew can assign tasks to. Leader, when set,
// is the manager consulted in hierarchical mode.
type Team struct {
	members []schema.Agent
	Leader  schema.Agent
}

func NewTeam() *Team {
	return &Team{members: []schema.Agent{}}
}

func (t *Team) Member(name string) schema.Agent {
	for _, a := range t.members {
		if strings.EqualFold(a.Name(), name) {
			return a
		}
	}
	if t.Leader != nil && strings.EqualFold(t.Leader.Name(), name) {
		return t.Leader
	}
	return nil
}

func (t *Team) AddMembers(members ...schema.Agent) {
	for _, member := range members {
		if member != nil && t.Member(member.Name()) == nil {
			t.members = append(t.members, member)
		}
	}
}

func (t *Team) Members() []schema.Agent {
	return t.members
}
