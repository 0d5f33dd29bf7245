package catalog

import (
	"context"
	"sort"

	"github.com/goliatone/go-statusflow"
	"github.com/goliatone/go-statusflow/flow"
)

type (
	Graph          = flow.Graph[statusflow.Status, statusflow.ItemType]
	Binder         = flow.Binder[statusflow.Status, statusflow.ItemType]
	Engine         = flow.Engine[statusflow.Status, statusflow.ItemType]
	Dispatcher     = flow.Dispatcher[statusflow.Status, statusflow.ItemType]
	ActionRegistry = flow.ActionRegistry[statusflow.Status, statusflow.ItemType]
	GuardRegistry  = flow.GuardRegistry[statusflow.Status, statusflow.ItemType]
	ActionRequest  = flow.ActionRequest[statusflow.Status, statusflow.ItemType]
	ActionEvent    = flow.ActionEvent[statusflow.Status, statusflow.ItemType]
	DispatchOption = flow.DispatcherOption[statusflow.Status, statusflow.ItemType]
	Workflow       = flow.Workflow[statusflow.Status]
	Step           = flow.Step[statusflow.Status]
)

// Catalog is a compiled, immutable catalog. Build it once at startup and
// share it between requests.
type Catalog struct {
	config Config
	Graph  *Graph
	Binder *Binder
	Engine *Engine
}

type options struct {
	logger flow.Logger
}

// Option customizes compilation.
type Option func(*options)

// WithLogger sets the logger handed to the engine.
func WithLogger(logger flow.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Compile validates cfg and builds the graph, role bindings and engine. Any
// error is a configuration defect and should stop the process.
func Compile(cfg Config, opts ...Option) (*Catalog, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	graph, err := flow.NewGraph(graphDefinition(cfg))
	if err != nil {
		return nil, err
	}
	binder, err := flow.NewBinder(graph, bindings(cfg)...)
	if err != nil {
		return nil, err
	}

	engineOpts := []flow.EngineOption[statusflow.Status, statusflow.ItemType]{
		flow.WithLabeler[statusflow.Status, statusflow.ItemType](statusflow.Status.Label),
		flow.WithDisplaySteps(displaySteps(cfg)...),
	}
	if o.logger != nil {
		engineOpts = append(engineOpts, flow.WithLogger[statusflow.Status, statusflow.ItemType](o.logger))
	}
	engine, err := flow.NewEngine(graph, binder, engineOpts...)
	if err != nil {
		return nil, err
	}

	return &Catalog{config: cfg, Graph: graph, Binder: binder, Engine: engine}, nil
}

// Config returns the source configuration.
func (c *Catalog) Config() Config { return c.config }

// Workflow converts a backend snapshot and builds its workflow for role.
func (c *Catalog) Workflow(ctx context.Context, snapshot statusflow.ItemSnapshot, role string) (Workflow, error) {
	item, err := snapshot.Item()
	if err != nil {
		return Workflow{ItemID: snapshot.ID, Role: role}, err
	}
	return c.Engine.Workflow(ctx, item, role)
}

// NewDispatcher wires executors and guards against the catalog bindings.
func (c *Catalog) NewDispatcher(actions *ActionRegistry, guards *GuardRegistry, logger flow.Logger, opts ...DispatchOption) (*Dispatcher, error) {
	if logger != nil {
		opts = append([]DispatchOption{flow.WithDispatchLogger[statusflow.Status, statusflow.ItemType](logger)}, opts...)
	}
	return flow.NewDispatcher(c.Binder, actions, guards, opts...)
}

// The builders below run after Validate, so key parsing cannot fail.

func graphDefinition(cfg Config) flow.GraphDefinition[statusflow.Status, statusflow.ItemType] {
	start, _ := statusflow.ParseStatus(cfg.Start)
	def := flow.GraphDefinition[statusflow.Status, statusflow.ItemType]{
		Start:  start,
		States: statusflow.Statuses(),
		Types:  statusflow.ItemTypes(),
	}
	for _, st := range cfg.States {
		state, _ := statusflow.ParseStatus(st.Key)
		node := flow.NodeDefinition[statusflow.Status, statusflow.ItemType]{State: state}
		for _, key := range st.AllowedTypes {
			t, _ := statusflow.ParseItemType(key)
			node.AllowedTypes = append(node.AllowedTypes, t)
		}
		for _, key := range st.Nexts {
			next, _ := statusflow.ParseStatus(key)
			node.Nexts = append(node.Nexts, next)
		}
		def.Nodes = append(def.Nodes, node)
	}
	return def
}

func bindings(cfg Config) []flow.Binding[statusflow.Status] {
	roles := make([]string, 0, len(cfg.Roles))
	for role := range cfg.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	out := make([]flow.Binding[statusflow.Status], 0, len(roles))
	for _, role := range roles {
		table := cfg.Roles[role]
		b := flow.Binding[statusflow.Status]{
			Role:    role,
			Actions: make(map[statusflow.Status]*flow.ActionDescriptor, len(table)),
		}
		for key, desc := range table {
			state, _ := statusflow.ParseStatus(key)
			b.Actions[state] = descriptor(desc)
		}
		out = append(out, b)
	}
	return out
}

func descriptor(cfg *DescriptorConfig) *flow.ActionDescriptor {
	if cfg.empty() {
		return nil
	}
	desc := &flow.ActionDescriptor{Hint: cfg.Hint, Metadata: cfg.Metadata}
	for _, a := range cfg.Actions {
		desc.Actions = append(desc.Actions, flow.Action{
			ID:       a.ID,
			Label:    a.Label,
			Style:    a.Style,
			Confirm:  a.Confirm,
			Requires: append([]string(nil), a.Requires...),
		})
	}
	return desc
}

func displaySteps(cfg Config) []flow.DisplayStep[statusflow.Status, statusflow.ItemType] {
	out := make([]flow.DisplayStep[statusflow.Status, statusflow.ItemType], 0, len(cfg.DisplaySteps))
	for _, ds := range cfg.DisplaySteps {
		after, _ := statusflow.ParseStatus(ds.After)
		step := flow.DisplayStep[statusflow.Status, statusflow.ItemType]{After: after, Label: ds.Label}
		for _, key := range ds.Types {
			t, _ := statusflow.ParseItemType(key)
			step.Types = append(step.Types, t)
		}
		out = append(out, step)
	}
	return out
}
