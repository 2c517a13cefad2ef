// Package prompt renders the messages sent to the model for one question.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/tablequery/tablequery/internal/nl2query"
	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/schema"
)

const systemMessage = "You are a data analyst assistant. You answer questions about a single table " +
	"by calling the " + nl2query.QueryToolName + " tool with a JSON query plan. " +
	"Never answer in prose and never call any other tool."

const exampleQuestion = "Which branch has the highest total sales paid in cash?"

const examplePlan = `{"steps":[` +
	`{"op":"filter","conditions":[{"column":"Payment","cmp":"eq","value":"Cash"}]},` +
	`{"op":"aggregate","func":"sum","column":"Total","group_by":["Branch"]},` +
	`{"op":"idxmax"}]}`

var userTemplate = template.Must(template.New("user").Parse(`Table description:
{{.Description}}
Question: {{.Question}}

Answer by calling {{.Tool}} exactly once. Its "{{.Argument}}" argument must be one JSON query plan:
{"steps":[{"op":...}, ...]}. Steps run in order, each on the output of the previous one, starting from the whole table.

Operations:
{{range .Ops}}- {{.}}
{{end}}
Comparators: {{.Comparators}}
Aggregate functions: {{.AggFuncs}}

Rules:
- Use column names exactly as listed, including case and spaces.
- Emit a single plan. Do not assign variables, do not write multiple statements and do not modify the table.
- Aggregations skip missing values (NaN); use isnull or notnull to filter them explicitly.
- Datetime values are written as "YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS".
- Do not explain the plan or answer in prose.

Example question: {{.ExampleQuestion}}
Example plan: {{.ExamplePlan}}
`))

var opHelp = map[query.Op]string{
	query.OpFilter:      `filter {"conditions":[{"column","cmp","value"|"values"}],"match":"all"|"any"}: keep matching rows`,
	query.OpSelect:      `select {"columns":[...]}: keep only these columns`,
	query.OpSort:        `sort {"by":[{"column","descending"}]} on a table, {"descending"} on a series`,
	query.OpHead:        `head {"n"}: first n rows or elements (default 5)`,
	query.OpTail:        `tail {"n"}: last n rows or elements (default 5)`,
	query.OpDistinct:    `distinct {"columns"?}: drop duplicate rows`,
	query.OpGroupBy:     `group_by {"columns":[...],"aggregates":[{"column","func","as"?}]}: one row per group`,
	query.OpAggregate:   `aggregate {"func","column","group_by"?}: a value, or a series labelled by group when grouped`,
	query.OpColumn:      `column {"column"}: a series labelled by row position`,
	query.OpValueCounts: `value_counts {"column"?}: count of each value, most frequent first`,
	query.OpIdxMax:      `idxmax: label of the largest value of a series`,
	query.OpIdxMin:      `idxmin: label of the smallest value of a series`,
	query.OpCount:       `count: number of rows, or non-missing elements of a series`,
}

type userData struct {
	Description     string
	Question        string
	Tool            string
	Argument        string
	Ops             []string
	Comparators     string
	AggFuncs        string
	ExampleQuestion string
	ExamplePlan     string
}

// Build returns the system and user messages for question.
func Build(summary schema.Summary, question string) ([]nl2query.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	data := userData{
		Description:     summary.Describe(),
		Question:        question,
		Tool:            nl2query.QueryToolName,
		Argument:        nl2query.CodeArgument,
		Comparators:     joinNames(query.Comparators),
		AggFuncs:        joinNames(query.AggFuncs),
		ExampleQuestion: exampleQuestion,
		ExamplePlan:     examplePlan,
	}
	for _, op := range query.Ops {
		data.Ops = append(data.Ops, opHelp[op])
	}

	var user strings.Builder
	if err := userTemplate.Execute(&user, data); err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return []nl2query.Message{
		{Role: nl2query.RoleSystem, Content: systemMessage},
		{Role: nl2query.RoleUser, Content: user.String()},
	}, nil
}

func joinNames[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, value := range values {
		names[i] = string(value)
	}
	return strings.Join(names, ", ")
}
