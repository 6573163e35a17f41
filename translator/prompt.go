package translator

import (
	"fmt"

	"github.com/spektr-org/sheetql/llm"
)

// ============================================================================
// PROMPT BUILDER: Category templates
// ============================================================================
// The wording of each template is part of the contract with the model:
// changing it shifts what comes back, so edits here need a fresh look at
// translation quality. Every template takes the column list and the request.
// ============================================================================

var templates = map[Category]string{
	Filter: "You are an expert data analyst. Given the following columns: %[1]s, " +
		"translate the user's request into a pandas filter expression. " +
		"User request: '%[2]s'\n" +
		"Return only the pandas filter code (e.g., df[df['Region'] == 'Delhi'])",
	Aggregate: "Given columns: %[1]s, translate the user's aggregation query into a pandas groupby/agg expression. " +
		"User request: '%[2]s'\n" +
		"Return only the pandas code.",
	Sort: "Given columns: %[1]s, translate the user's sorting/grouping query into a pandas sort_values or groupby expression. " +
		"User request: '%[2]s'\n" +
		"Return only the pandas code.",
	Pivot: "Given columns: %[1]s, translate the user's pivot table query into a pandas pivot_table expression. " +
		"User request: '%[2]s'\n" +
		"Return only the pandas code.",
}

// footer constrains the answer to what the sandbox accepts.
const footer = "\nWrite a single expression on one line that uses only the DataFrame named df. " +
	"Do not assign it to a variable, do not import anything and do not use pd or numpy."

// BuildPrompt renders the template for a category.
func BuildPrompt(category Category, request string, columns []string) (string, error) {
	tpl, ok := templates[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return fmt.Sprintf(tpl, llm.ListLiteral(columns), request) + footer, nil
}
