package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-statusflow"
	"github.com/goliatone/go-statusflow/catalog"
	"github.com/goliatone/go-statusflow/flow"
)

type validateCmd struct{}

func (validateCmd) Run(rt *runtime) error {
	c, err := rt.catalog()
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "catalog ok: %d states, start %s, roles %s\n",
		len(c.Graph.States()), c.Graph.Start(), strings.Join(c.Binder.Roles(), ", "))
	return nil
}

type statesCmd struct {
	Type string `help:"Only mark terminal states for this item type (key or code)."`
}

func (cmd statesCmd) Run(rt *runtime) error {
	c, err := rt.catalog()
	if err != nil {
		return err
	}
	var typ *statusflow.ItemType
	if cmd.Type != "" {
		t, err := parseItemType(cmd.Type)
		if err != nil {
			return err
		}
		typ = &t
	}
	fmt.Fprintln(rt.out, renderStates(c.Graph, typ))
	return nil
}

type itemFlags struct {
	Type      string   `help:"Item type (key or code)." required:""`
	Status    string   `help:"Current status (key or code)." required:""`
	Role      string   `help:"Acting role." default:"consignor"`
	ItemID    string   `help:"Item identifier used in logs." name:"item-id" default:"cli"`
	History   []string `help:"Visited status as KEY=RFC3339, repeatable." sep:"none"`
	Consignor string   `help:"Consignor account status passed to action guards." default:"EnabledStatus"`
}

func (f itemFlags) item() (statusflow.Item, error) {
	typ, err := parseItemType(f.Type)
	if err != nil {
		return statusflow.Item{}, err
	}
	current, err := parseStatus(f.Status)
	if err != nil {
		return statusflow.Item{}, err
	}
	history := make(map[statusflow.Status]time.Time, len(f.History))
	for _, entry := range f.History {
		key, at, ok := strings.Cut(entry, "=")
		if !ok {
			return statusflow.Item{}, fmt.Errorf("history entry %q: expected KEY=RFC3339", entry)
		}
		st, err := parseStatus(key)
		if err != nil {
			return statusflow.Item{}, err
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(at))
		if err != nil {
			return statusflow.Item{}, fmt.Errorf("history entry %q: %w", entry, err)
		}
		history[st] = ts
	}
	return statusflow.Item{
		ID:         f.ItemID,
		Type:       typ,
		Current:    current,
		History:    history,
		Attributes: map[string]any{catalog.AttrConsignorStatus: f.Consignor},
	}, nil
}

type showCmd struct {
	itemFlags `embed:""`
	JSON bool `help:"Print the workflow as JSON."`
}

func (cmd showCmd) Run(rt *runtime) error {
	c, err := rt.catalog()
	if err != nil {
		return err
	}
	item, err := cmd.item()
	if err != nil {
		return err
	}
	wf, err := c.Engine.Workflow(context.Background(), item, cmd.Role)
	if err != nil {
		return err
	}
	var available []flow.AvailableAction
	if disp, err := dryRunDispatcher(c, rt); err != nil {
		rt.logger.Warn("action guards unavailable for this catalog: %v", err)
	} else if available, err = disp.Available(item, cmd.Role); err != nil {
		return err
	}

	if cmd.JSON {
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			catalog.Workflow
			Actions []flow.AvailableAction `json:"available_actions,omitempty"`
		}{wf, available})
	}
	fmt.Fprintln(rt.out, renderWorkflow(wf, available))
	return nil
}

type dispatchCmd struct {
	itemFlags `embed:""`
	Action  string        `help:"Action ID to run." required:""`
	Retries int           `help:"Executor retries after a failure." default:"0"`
	Timeout time.Duration `help:"Timeout for each executor attempt." default:"0s"`
}

func (cmd dispatchCmd) Run(rt *runtime) error {
	c, err := rt.catalog()
	if err != nil {
		return err
	}
	item, err := cmd.item()
	if err != nil {
		return err
	}
	disp, err := dryRunDispatcher(c, rt, flow.WithRetryPolicy[statusflow.Status, statusflow.ItemType](flow.RetryPolicy{
		MaxRetries: cmd.Retries,
		Timeout:    cmd.Timeout,
	}))
	if err != nil {
		return err
	}
	sub := disp.Subscribe(func(_ context.Context, evt catalog.ActionEvent) {
		fmt.Fprintf(rt.out, "dispatched %s for %s on item %s\n", evt.ActionID, evt.Role, evt.ItemID)
	})
	defer sub.Unsubscribe()
	return disp.Dispatch(context.Background(), item, cmd.Role, cmd.Action, nil)
}

// dryRunDispatcher registers a printing executor for every bound action.
func dryRunDispatcher(c *catalog.Catalog, rt *runtime, opts ...catalog.DispatchOption) (*catalog.Dispatcher, error) {
	actions := flow.NewActionRegistry[statusflow.Status, statusflow.ItemType]()
	registered := map[string]struct{}{}
	for _, role := range c.Binder.Roles() {
		for _, st := range c.Graph.States() {
			desc, ok := c.Binder.ActionsFor(role, st)
			if !ok {
				continue
			}
			for _, a := range desc.Actions {
				if _, done := registered[a.ID]; done {
					continue
				}
				registered[a.ID] = struct{}{}
				if err := actions.RegisterFunc(a.ID, func(_ context.Context, req catalog.ActionRequest) error {
					fmt.Fprintf(rt.out, "dry-run: %s would run %s on item %s at %s\n",
						req.Role, req.Action.ID, req.Item.ID, req.Item.Current)
					return nil
				}); err != nil {
					return nil, err
				}
			}
		}
	}
	return c.NewDispatcher(actions, catalog.DefaultGuards(), rt.logger, opts...)
}

func parseStatus(v string) (statusflow.Status, error) {
	if code, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return statusflow.StatusFromValue(code)
	}
	return statusflow.ParseStatus(v)
}

func parseItemType(v string) (statusflow.ItemType, error) {
	if code, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return statusflow.ItemTypeFromValue(code)
	}
	return statusflow.ParseItemType(v)
}
