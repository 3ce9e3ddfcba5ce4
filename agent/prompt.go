package agent

const _defaultBasePrompt = `
You are {{.name}}, {{.role}}.
{{.description}}
{{if .goal}}
{{.goal}}
{{end}}
Current time: {{.current}}
`

const _defaultBaseInstructions = `
{{if .tool_descriptions}}
You have access to the following tools:
~~~
{{.tool_descriptions}}
~~~

To use a tool, you MUST respond with json format like below:
~~~
{
	"thought": "you should always think about what to do",
	"action": "the tool to take, should be one of [{{.tool_names}}]",
	"input": "the input to the tool, please follow tool description"
}
~~~
{{end}}
When you have the final answer, you MUST respond with json format like below:
~~~
{
	"cate": "END",
	"thought": "Clearly describe your thought",
	"content": "The final answer to the task"
}
~~~
Respond with exactly one json object and nothing else.
`

const _defaultBaseSuffix = `
Task:
~~~
{{.question}}
~~~

Previous conversation:
~~~
{{.history}}
~~~
`
