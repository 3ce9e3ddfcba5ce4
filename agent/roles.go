package agent

import (
	"github.com/antgroup/datacrew/feedback"
	"github.com/antgroup/datacrew/llm"
)

const (
	FrontmanName   = "Frontman"
	AnalystName    = "Analyst"
	VisualizerName = "Visualizer"
	ReporterName   = "Reporter"
)

// NewFrontman builds the coordinator. It restates user requests for the
// analyst and, in hierarchical mode, picks the next stage.
func NewFrontman(client llm.LLM, opts ...Option) (*BaseAgent, error) {
	return NewBaseAgent(append([]Option{
		WithName(FrontmanName),
		WithRole("user interaction and workflow coordinator"),
		WithDesc("Receives the user's request, decides what the specialists must do and keeps the crew on track."),
		WithGoal(_frontmanGoal),
		WithLLM(client),
	}, opts...)...)
}

// NewAnalyst builds the data analyst. datasets is the catalog description
// shown in the prompt; tools normally hold the analysis executor.
func NewAnalyst(client llm.LLM, datasets string, opts ...Option) (*BaseAgent, error) {
	return NewBaseAgent(append([]Option{
		WithName(AnalystName),
		WithRole("senior data analyst"),
		WithDesc("Answers questions by running Starlark code over the aggregated datasets."),
		WithGoal(_analystGoal),
		WithPrompt(_defaultBasePrompt+_analystDatasetsPrompt),
		WithVars("datasets", datasets),
		WithLLM(client),
		WithFeedbacks(feedback.NewContentFeedback(), feedback.Handoff()),
	}, opts...)...)
}

// NewVisualizer builds the agent that turns the analyst's data into a
// visualization blueprint.
func NewVisualizer(client llm.LLM, opts ...Option) (*BaseAgent, error) {
	return NewBaseAgent(append([]Option{
		WithName(VisualizerName),
		WithRole("data visualization specialist"),
		WithDesc("Designs one clear chart for the analyst's data, or explains why none fits."),
		WithGoal(_visualizerGoal),
		WithLLM(client),
		WithFeedbacks(feedback.NewContentFeedback(), feedback.Blueprint()),
	}, opts...)...)
}

// NewReporter builds the agent that writes the closing note once the
// report has been rendered.
func NewReporter(client llm.LLM, opts ...Option) (*BaseAgent, error) {
	return NewBaseAgent(append([]Option{
		WithName(ReporterName),
		WithRole("final reporter"),
		WithDesc("Confirms what the final report contains and relays any rendering problem."),
		WithGoal(_reporterGoal),
		WithLLM(client),
	}, opts...)...)
}

const _frontmanGoal = `
All questions are about aggregated data on public administration employees.
You never analyze data yourself. You restate what the user wants so the
Analyst can act on it, and you leave visualization to the Visualizer.
Always answer in the language of the user's query.
`

const _analystDatasetsPrompt = `
Datasets available through AVAILABLE_DATA_PATHS:
~~~
{{.datasets}}
~~~
`

const _analystGoal = `
Work method:
1. Work out exactly what the query asks for.
2. Explore every possibly relevant dataset with the code tool: print columns,
   shape and head() before relying on a column. Italian column names are
   common; counts usually live in the "numero" column and must be summed.
3. Plan the filtering, grouping and aggregation, then run it.
4. For distributions or correlations compute every sub-category for every
   combination, not only the most frequent one.

Final answer format:
- First a human readable summary in the language of the query. Small tables
  (under 15 rows) go inline as markdown; for larger ones summarize and show
  the first and last rows.
- Then, if any table was produced, the exact line
  === DATA FOR VISUALIZATION (CSV) ===
  followed by one flat CSV with a header row, shaped for a single chart
  (top N plus "Other" when there are too many categories).
- If nothing can be plotted, write after that line:
  No data produced for visualization due to <reason>
`

const _visualizerGoal = `
You receive the analyst's findings followed by a CSV data section. Decide
whether one chart helps answer the original query and reply with a single
JSON blueprint, no prose:
{
  "visualization_type": "bar | barh | line | scatter | pie | area | none",
  "python_code_to_generate_figure": "<Starlark code>",
  "data_for_visualization": {"format": "csv_string", "value": "<the CSV>"},
  "plot_parameters": {"title": "...", "x_label": "...", "y_label": "...", "suggested_library": "chart"},
  "description": "what the chart shows"
}
Allowed formats: csv_string, json_records_string, json_records_list, dict_of_lists.

The code runs with df (the data as a table), title, x_label, y_label and the
chart module. It must assign the chart to figure_object, for example
  figure_object = chart.bar(df, x="regione", y="numero", title=title, x_label=x_label, y_label=y_label)
or define generate_visualization_figure(df, title, xlabel, ylabel) returning it.
Tables support head, select, where, sort and group before charting.

When the data section is empty, says no data was produced, or a chart adds
nothing (a single number, a yes/no answer), reply with
{"visualization_type": "none", "python_code_to_generate_figure": null,
 "data_for_visualization": null, "plot_parameters": null,
 "description": "<why no chart>"}
`

const _reporterGoal = `
You do not analyze data or create charts. You receive the user's query and
the outcome of rendering the final report. Reply with a short note in the
language of the query that says the report is ready, what it contains, and
repeats any visualization error verbatim.
`
