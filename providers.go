package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/storage"
)

func readPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials file: %w", err)
	}
	return data, nil
}

func providerAddCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cmd := args.Provider.Add
	payload, err := readPayload(cmd.Payload)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p := &database.StorageProvider{Name: cmd.Name, Variant: cmd.Variant, Config: payload}
	if err := a.svc.CreateProvider(ctx, p); err != nil {
		return err
	}
	logger.Info().Object("provider", p).Msg("created storage provider")
	fmt.Println(p.ID)
	return nil
}

func providerListCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Provider.List.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	providers, err := a.svc.ListProviders(ctx)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.AddRow("ID", "NAME", "VARIANT", "UPDATED")
	for _, p := range providers {
		table.AddRow(p.ID, p.Name, p.Variant, humanize.Time(p.UpdatedAt))
	}
	fmt.Fprintln(os.Stdout, table)
	return nil
}

func providerRotateCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cmd := args.Provider.Rotate
	payload, err := readPayload(cmd.Payload)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.svc.RotateProviderCredentials(ctx, cmd.ID, payload)
}

func providerRemoveCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Provider.Remove.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.DeleteProvider(ctx, args.Provider.Remove.ID); err != nil {
		return err
	}
	logger.Info().Str("provider", args.Provider.Remove.ID).Msg("deleted storage provider")
	return nil
}

func providerTestCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Provider.Test.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return printCheckResults(a.svc.CheckProvider(ctx, args.Provider.Test.ID))
}

func providerTestConfigCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cmd := args.Provider.TestConfig
	payload, err := readPayload(cmd.Payload)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return printCheckResults(a.svc.CheckProviderConfig(ctx, cmd.Variant, payload))
}

func providerTestAllCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Provider.TestAll.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.CheckAllProviders(ctx)
	if err != nil {
		return err
	}
	return printCheckResults(results...)
}

// printCheckResults prints one row per result and fails when any provider
// is not connected.
func printCheckResults(results ...storage.CheckResult) error {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("PROVIDER", "CONNECTED", "STATUS", "ERROR")
	failed := 0
	for _, res := range results {
		id := res.ProviderID
		if id == "" {
			id = "-"
		}
		table.AddRow(id, res.Connected, res.Status, res.Error)
		if !res.Connected {
			failed++
		}
	}
	fmt.Fprintln(os.Stdout, table)
	if failed > 0 {
		return fmt.Errorf("%d of %d providers could not connect", failed, len(results))
	}
	return nil
}
