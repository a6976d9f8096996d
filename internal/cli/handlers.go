package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/internal/secret"
	"github.com/BartekS5/mapflow/internal/writers"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

func loadStore(base, process string) (*config.Store, error) {
	env := config.LoadEnv()
	if base == "" {
		base = env.BaseConfig
	}
	var d secret.Decrypter
	if env.Secret != "" {
		d = secret.NewAESDecrypter(env.Secret)
	}
	return config.Load(base, process, d)
}

func runCommand(ctx context.Context, opts *RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.Schedule != "":
		return runScheduled(ctx, opts)
	case opts.Watch:
		return runWatched(ctx, opts)
	default:
		return runOnce(ctx, opts)
	}
}

// runOnce loads the configuration fresh, so scheduled and watched runs
// pick up edits.
func runOnce(ctx context.Context, opts *RunOptions) error {
	store, err := loadStore(opts.Base, opts.Config)
	if err != nil {
		return err
	}
	p, err := etl.NewPipeline(store, opts.DryRun)
	if err != nil {
		return err
	}
	if err := p.Run(ctx); err != nil {
		var werr *etl.WriterError
		if errors.As(err, &werr) && werr.Code != 0 {
			logger.Errorf("writer %s failed with code %d: %s", werr.Writer, werr.Code, werr.RawMessage)
		}
		return err
	}
	return nil
}

func printMapping(out io.Writer, opts *MappingOptions) error {
	store, err := loadStore(opts.Base, opts.Config)
	if err != nil {
		return err
	}
	fields := opts.Fields
	if len(fields) == 0 {
		if reader, err := store.ReaderName(); err == nil {
			fields = store.Resolver(reader).List(opts.Entity, "source_fields")
		}
	}
	entity := models.NewSourceEntity(opts.Entity, fields)

	wm, err := mapping.Load(store.Resolver(opts.Writer), entity)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "writer:      %s\n", wm.Writer())
	fmt.Fprintf(out, "entity:      %s -> %s\n", entity.Name(), wm.DestEntity())
	if id := wm.UniqueIDField(); id != "" {
		fmt.Fprintf(out, "unique id:   %s\n", id)
	}
	if f := wm.FilterFields(); len(f) > 0 {
		fmt.Fprintf(out, "filter:      %s\n", strings.Join(f, ", "))
	}
	if !wm.HasMapping() {
		fmt.Fprintln(out, "no mapping, source fields are written as they are")
		return nil
	}
	for _, f := range wm.Fields() {
		fmt.Fprintln(out, f.String())
	}
	return nil
}

func encryptValue(out io.Writer, value string) error {
	key := config.LoadEnv().Secret
	if key == "" {
		return errors.New("MAPFLOW_SECRET is not set")
	}
	enc, err := secret.NewAESDecrypter(key).Encrypt(value)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, enc)
	return nil
}

func listTypes(out io.Writer) {
	fmt.Fprintf(out, "readers: %s\n", strings.Join(etl.ReaderTypes(), ", "))
	fmt.Fprintf(out, "writers: %s\n", strings.Join(etl.WriterTypes(), ", "))
	fmt.Fprintf(out, "filters: %s\n", strings.Join(etl.FilterNames(), ", "))
	fmt.Fprintf(out, "mappers: %s\n", strings.Join(mapping.Hooks(), ", "))
	fmt.Fprintf(out, "code:    %s\n", strings.Join(writers.CodeNames(), ", "))
}
