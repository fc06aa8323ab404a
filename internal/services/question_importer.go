package services

import (
	"context"
	_ "embed"
	"io"
	"strings"

	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	contextutils "dailyquiz/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/question_import.schema.json
var questionImportSchema []byte

// ImportDocument is the YAML layout accepted by the importer
type ImportDocument struct {
	Questions []models.QuestionInput `yaml:"questions"`
}

// ImportFailure describes one question that could not be added
type ImportFailure struct {
	Index int    `json:"index"`
	Stem  string `json:"stem"`
	Error string `json:"error"`
}

// ImportResult summarizes an import run
type ImportResult struct {
	Imported []string        `json:"imported"`
	Failed   []ImportFailure `json:"failed"`
}

// QuestionImporter bulk-loads questions from YAML after validating the document against a JSON schema
type QuestionImporter struct {
	questions QuestionServiceInterface
	schema    *gojsonschema.Schema
	logger    *observability.Logger
}

// NewQuestionImporter compiles the embedded import schema
func NewQuestionImporter(questions QuestionServiceInterface, logger *observability.Logger) (*QuestionImporter, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(questionImportSchema))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to compile question import schema")
	}
	return &QuestionImporter{questions: questions, schema: schema, logger: logger}, nil
}

// Parse validates raw YAML against the schema and decodes it
func (i *QuestionImporter) Parse(data []byte) ([]models.QuestionInput, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, contextutils.NewValidationError("import file is not valid YAML: %v", err)
	}
	if raw == nil {
		return nil, contextutils.NewValidationError("import file is empty")
	}
	doc, err := convertToJSONCompatible(raw)
	if err != nil {
		return nil, err
	}

	result, err := i.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to run import schema validation")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		verr := contextutils.NewValidationError("import file does not match the question schema")
		verr.Details = strings.Join(msgs, "; ")
		return nil, verr
	}

	var parsed ImportDocument
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, contextutils.NewValidationError("import file could not be decoded: %v", err)
	}
	return parsed.Questions, nil
}

// Import parses r and adds every question. Individual failures are collected, not fatal.
func (i *QuestionImporter) Import(ctx context.Context, r io.Reader) (result0 *ImportResult, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "ImportQuestions")
	defer observability.FinishSpan(span, &err)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read import file")
	}

	inputs, err := i.Parse(data)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Imported: []string{}, Failed: []ImportFailure{}}
	for idx := range inputs {
		in := inputs[idx]
		q, err := i.questions.CreateQuestion(ctx, &in)
		if err != nil {
			res.Failed = append(res.Failed, ImportFailure{Index: idx, Stem: in.Stem, Error: err.Error()})
			continue
		}
		res.Imported = append(res.Imported, q.ID)
	}

	span.SetAttributes(
		observability.AttributeCount("imported", len(res.Imported)),
		observability.AttributeCount("failed", len(res.Failed)),
	)
	i.logger.Info(ctx, "Question import finished", map[string]interface{}{
		"imported": len(res.Imported),
		"failed":   len(res.Failed),
	})
	return res, nil
}

// convertToJSONCompatible turns YAML maps with interface{} keys into string-keyed maps
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			keyStr, ok := k.(string)
			if !ok {
				return nil, contextutils.NewValidationError("import file has a non-string key: %v", k)
			}
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[keyStr] = converted
		}
		return result, nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[k] = converted
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for idx, val := range v {
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[idx] = converted
		}
		return result, nil
	default:
		return v, nil
	}
}
