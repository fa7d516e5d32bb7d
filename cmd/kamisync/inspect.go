package main

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argus-labs/kamisync/pkg/mirror/persist"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

var errNoValue = eris.New("no value")

func newInspectCmd(a *app) *cobra.Command {
	var component, entity string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the cursors of the persisted store, or one of its values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (component == "") != (entity == "") {
				return eris.New("--component and --entity must be given together")
			}
			st, err := a.loadPersisted(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if component == "" {
				printSummary(out, st)
				return nil
			}
			return printValue(out, st, component, entity)
		},
	}
	cmd.Flags().StringVar(&component, "component", "", "component id (hex)")
	cmd.Flags().StringVar(&entity, "entity", "", "entity id (hex)")
	return cmd
}

// loadPersisted restores the configured store. It fails if nothing was persisted yet.
func (a *app) loadPersisted(ctx context.Context) (*store.Store, error) {
	st, persistCfg, err := a.openStore()
	if err != nil {
		return nil, err
	}
	storage, err := a.openStorage(ctx, persistCfg)
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	if err := persist.LoadStore(ctx, storage, st); err != nil {
		if eris.Is(err, persist.ErrNotFound) {
			return nil, eris.Wrapf(err, "store %s was never synced", st.Name())
		}
		return nil, err
	}
	return st, nil
}

func printValue(out io.Writer, st store.Reader, componentID, entityID string) error {
	componentID, err := schema.NormalizeID(componentID)
	if err != nil {
		return err
	}
	entityID, err = schema.NormalizeID(entityID)
	if err != nil {
		return err
	}

	componentSlot, ok := st.ComponentSlot(componentID)
	if !ok {
		return eris.Errorf("unknown component %s", componentID)
	}
	entitySlot, ok := st.EntitySlot(entityID)
	if !ok {
		return eris.Errorf("unknown entity %s", entityID)
	}
	p, err := store.Pack(componentSlot, entitySlot)
	if err != nil {
		return err
	}
	v, ok := st.GetValue(p)
	if !ok {
		return eris.Wrapf(errNoValue, "entity %s has no component %s", entityID, componentID)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
