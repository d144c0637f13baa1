// cmd/tools/worker-generator/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"carehub/pkg/registry"

	"github.com/spf13/cobra"
)

// ErrExists is returned when the worker directory already has files and
// --force was not given.
var ErrExists = errors.New("worker directory already exists")

// WorkerData is the template input for one activity.
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Category     string
	Description  string
	Timeout      string
	Retries      int
	ErrorCodes   []string
	InputFields  []Field
	OutputFields []Field
}

type Field struct {
	Name     string
	GoType   string
	JSONName string
	Required bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		activity     string
		outputDir    string
		registryPath string
		force        bool
	)

	cmd := &cobra.Command{
		Use:          "worker-generator",
		Short:        "Scaffold a job worker package from the activity registry",
		Example:      "  worker-generator --activity record-wellness-score",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			a, ok := reg.Find(activity)
			if !ok {
				return fmt.Errorf("%w: %s", registry.ErrNotFound, activity)
			}
			dir, err := generate(*a, outputDir, force)
			if err != nil {
				return err
			}
			printNextSteps(cmd.OutOrStdout(), *a, dir)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&activity, "activity", "", "Activity ID from the registry (e.g. check-coverage)")
	f.StringVar(&outputDir, "output", "internal/workers", "Root directory for worker packages")
	f.StringVar(&registryPath, "registry", "configs/activity-registry.json", "Path to the activity registry")
	f.BoolVar(&force, "force", false, "Overwrite an existing worker directory")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func newWorkerData(a registry.Activity) WorkerData {
	return WorkerData{
		Name:         a.DisplayName,
		PackageName:  packageName(a.ID),
		TaskType:     a.TaskType,
		Category:     a.Category,
		Description:  a.Description,
		Timeout:      a.Timeout,
		Retries:      a.Retries,
		ErrorCodes:   a.ErrorCodes,
		InputFields:  schemaFields(a.InputSchema),
		OutputFields: schemaFields(a.OutputSchema),
	}
}

// generate writes the worker package to <root>/<category>/<id> and returns
// that directory.
func generate(a registry.Activity, root string, force bool) (string, error) {
	data := newWorkerData(a)
	dir := filepath.Join(root, a.Category, a.ID)

	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 && !force {
		return "", fmt.Errorf("%w: %s", ErrExists, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	for _, name := range sortedKeys(templates) {
		tmpl, err := template.New(name).Funcs(funcMap).Parse(templates[name])
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := writeTemplate(path, tmpl, data); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeTemplate(path string, tmpl *template.Template, data WorkerData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func printNextSteps(out io.Writer, a registry.Activity, dir string) {
	fmt.Fprintf(out, "Generated %s in %s\n\n", a.ID, dir)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Implement execute in handler.go")
	fmt.Fprintln(out, "  2. Add a config builder in internal/bootstrap/workers.go")
	fmt.Fprintln(out, "  3. Register the handler in cmd/worker-manager/main.go")
	fmt.Fprintf(out, "  4. Add the worker to configs/config.yaml:\n\n")
	fmt.Fprintf(out, "  %s:\n    enabled: true\n    max_jobs_active: 5\n    timeout: %d\n", a.TaskType, timeoutMillis(a.Timeout))
}

func packageName(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

// schemaFields turns the properties of a JSON schema object into struct
// fields, sorted by name.
func schemaFields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	fields := make([]Field, 0, len(props))
	for _, name := range sortedKeys(props) {
		details, _ := props[name].(map[string]interface{})
		fields = append(fields, Field{
			Name:     exportedName(name),
			GoType:   goTypeFromJSONType(details["type"]),
			JSONName: name,
			Required: required[name],
		})
	}
	return fields
}

func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int64"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// exportedName maps camelCase and snake_case property names to Go field
// names, keeping the Id suffix idiomatic.
func exportedName(prop string) string {
	parts := strings.FieldsFunc(prop, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	name := b.String()
	if strings.HasSuffix(name, "Id") {
		name = strings.TrimSuffix(name, "Id") + "ID"
	}
	return name
}

func timeoutMillis(timeout string) int64 {
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return 10000
	}
	return d.Milliseconds()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var funcMap = template.FuncMap{
	"timeoutMillis": timeoutMillis,
}

var templates = map[string]string{
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
}

const configTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/config.go
package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: {{ timeoutMillis .Timeout }} * time.Millisecond,
	}
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .InputFields }}
	{{ .Name }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}"` + "`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .Name }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}"` + "`" + `
{{- end }}
}
`

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Handler runs the {{ .Name }} job.{{ if .ErrorCodes }} Error codes: {{ range $i, $c := .ErrorCodes }}{{ if $i }}, {{ end }}{{ $c }}{{ end }}.{{ end }}
type Handler struct {
	config *Config
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, _ *Input) (*Output, error) {
	return nil, errors.NewInternalError(fmt.Errorf("%s is not implemented", TaskType))
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	if sendErr := h.errors.HandleJobError(context.Background(), client, job, err); sendErr != nil {
		h.logger.Error("failed to report job failure", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const testTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"testing"

	"carehub/internal/common/logger"

	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return LoadConfig()
}

func createTestInput() *Input {
	return &Input{}
}

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(createTestConfig(), logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), createTestInput())
	require.Error(t, err)
}
`
