package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/flowgen/pkg/models"
)

// ToolViolationError reports nodes referencing tools outside the candidate
// set. The generator is statistically prone to emitting plausible but
// unretrieved operations; this is the hallucination the validator exists to
// catch.
type ToolViolationError struct {
	Unknown []string // tool slugs referenced but not offered
	Allowed []string // tool slugs of the candidate set
}

func (e *ToolViolationError) Error() string {
	return fmt.Sprintf("workflow references tools outside the candidate set: %s (allowed: %s)",
		strings.Join(e.Unknown, ", "), strings.Join(e.Allowed, ", "))
}

// cronParser accepts the standard 5-field format (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validator checks a generated document against the candidate set used to
// produce it before the document may become a workflow version.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("module", "validator")}
}

// Validate runs, in order: the document's structural invariants, the
// tool-prefix check against the candidate set, and per-node parameter
// validation where the candidate set carries a schema for the node's exact
// operation. A *ToolViolationError marks hallucinated tools; any other error
// is structural.
func (v *Validator) Validate(document *models.WorkflowDocument, candidates models.CandidateSet) error {
	if err := document.Validate(); err != nil {
		return err
	}

	if err := v.checkToolPrefixes(document, candidates); err != nil {
		return err
	}

	for _, node := range document.Nodes {
		if err := v.checkNodeParameters(node, candidates); err != nil {
			return err
		}
	}

	return nil
}

// checkToolPrefixes verifies every node type's tool prefix appears among the
// candidate set's tools. Only the prefix matters: the generator may combine
// a retrieved tool's operations beyond the exact ones retrieval surfaced.
func (v *Validator) checkToolPrefixes(document *models.WorkflowDocument, candidates models.CandidateSet) error {
	unknown := make(map[string]bool)

	for _, node := range document.Nodes {
		toolSlug := node.ToolSlug()
		if !candidates.HasTool(toolSlug) {
			unknown[toolSlug] = true
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	slugs := make([]string, 0, len(unknown))
	for slug := range unknown {
		slugs = append(slugs, slug)
	}

	sort.Strings(slugs)

	v.logger.Warn("Generated workflow references unretrieved tools", "tools", slugs)

	return &ToolViolationError{Unknown: slugs, Allowed: candidates.ToolSlugs()}
}

// checkNodeParameters validates a node's parameter map against the catalog
// schema of its operation, when the candidate set knows that operation. A
// schedule trigger's cron expression must also parse.
func (v *Validator) checkNodeParameters(node *models.WorkflowNode, candidates models.CandidateSet) error {
	if expression, ok := node.Parameters["cron"].(string); ok {
		if _, err := cronParser.Parse(expression); err != nil {
			return fmt.Errorf("%w: node %q has invalid cron expression %q: %v",
				models.ErrInvalidWorkflowDocument, node.ID, expression, err)
		}
	}

	operation, ok := candidates.OperationByID(node.Type)
	if !ok || operation.Parameters == nil {
		return nil
	}

	parameters := node.Parameters
	if parameters == nil {
		parameters = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(operation.Parameters),
		gojsonschema.NewGoLoader(parameters),
	)
	if err != nil {
		return fmt.Errorf("parameter schema validation for node %q: %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: node %q parameters: %s",
			models.ErrInvalidWorkflowDocument, node.ID, strings.Join(details, "; "))
	}

	return nil
}
