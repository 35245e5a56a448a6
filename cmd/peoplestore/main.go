/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command peoplestore runs person operations against the configured store
// and prints their results as JSON.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suparena/peoplestore"
	"github.com/suparena/peoplestore/config"
	"github.com/suparena/peoplestore/logging"
	"github.com/suparena/peoplestore/models"
)

type cliFlags struct {
	Config    string        `type:"path" help:"YAML configuration file."`
	EnvFile   string        `type:"path" default:".env" help:"Dotenv file loaded into the environment."`
	Backend   string        `help:"Backend to use: mongodb, dynamodb or memory."`
	LogLevel  string        `help:"Log level: debug, info, warn or error."`
	LogFormat string        `help:"Log format: console or json."`
	LogUUID   bool          `name:"log-uuid" help:"Add instance UUID to all log messages."`
	Timeout   time.Duration `default:"30s" help:"Timeout of the whole command."`

	Seed struct{} `cmd:"" help:"Insert the sample people."`

	Create struct {
		Name  string   `arg:"" help:"Name."`
		Age   int      `arg:"" help:"Age."`
		Foods []string `arg:"" optional:"" help:"Favorite foods."`
	} `cmd:"" help:"Create a person."`

	FindByName struct {
		Name string `arg:"" help:"Name to match."`
	} `cmd:"" help:"Find people by name."`

	FindByFood struct {
		Food string `arg:"" help:"Favorite food to match."`
	} `cmd:"" help:"Find one person by favorite food."`

	FindByID struct {
		ID string `arg:"" help:"Person identifier."`
	} `cmd:"" name:"find-by-id" help:"Find a person by identifier."`

	AddFood struct {
		ID   string `arg:"" help:"Person identifier."`
		Food string `arg:"" optional:"" default:"hamburger" help:"Food to append."`
	} `cmd:"" help:"Append a favorite food, then save the person."`

	SetAge struct {
		Name string `arg:"" help:"Name to match."`
		Age  int    `arg:"" optional:"" default:"20" help:"New age."`
	} `cmd:"" help:"Atomically set the age of the first person with a name."`

	Remove struct {
		ID string `arg:"" help:"Person identifier."`
	} `cmd:"" help:"Remove a person by identifier."`

	RemoveMany struct {
		Name string `arg:"" optional:"" default:"Mary" help:"Name to match."`
	} `cmd:"" help:"Remove every person with a name."`

	QueryChain struct {
		Food    string   `arg:"" optional:"" default:"burrito" help:"Favorite food to match."`
		Sort    string   `default:"name" help:"Field to sort by."`
		Desc    bool     `help:"Sort in descending order."`
		Limit   int64    `default:"2" help:"Maximum number of results; 0 for no limit."`
		Exclude []string `default:"age" help:"Fields to omit."`
	} `cmd:"" help:"Find people by favorite food with sort, limit and field exclusion."`

	Version struct{} `cmd:"" help:"Print version."`
}

var cli cliFlags

func main() {
	kongCtx := kong.Parse(&cli,
		kong.Name("peoplestore"),
		kong.Description("Person document store operations."),
		kong.DefaultEnvars("PEOPLESTORE"),
	)

	cmd := kongCtx.Selected().Name
	if cmd == "version" {
		kongCtx.FatalIfErrorf(printJSON(os.Stdout, peoplestore.GetVersionInfo()))
		return
	}

	cfg, err := config.Load(cli.EnvFile, cli.Config)
	kongCtx.FatalIfErrorf(err)
	cli.applyTo(cfg)

	var instanceID string
	if cli.LogUUID {
		instanceID = uuid.NewString()
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, instanceID)
	kongCtx.FatalIfErrorf(err)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cli.Timeout)
	defer cancel()

	p, err := peoplestore.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("backend", cfg.Backend), zap.Error(err))
	}

	logger.Debug("Running command", zap.String("command", kongCtx.Command()))

	err = run(ctx, cmd, &cli, p, os.Stdout)

	if closeErr := p.Close(context.Background()); closeErr != nil {
		logger.Warn("Failed to close store", zap.Error(closeErr))
	}

	if err != nil {
		logger.Fatal("Command failed", zap.String("command", cmd), zap.Error(err))
	}
}

// applyTo overrides cfg with values given on the command line.
func (c *cliFlags) applyTo(cfg *config.Config) {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
}

// run executes the selected command and writes its result to w.
func run(ctx context.Context, cmd string, c *cliFlags, p *peoplestore.People, w io.Writer) error {
	var (
		res any
		err error
	)

	switch cmd {
	case "seed":
		var one *models.Person
		if one, err = p.CreateAndSavePerson(ctx, models.SamplePerson()); err != nil {
			return err
		}
		var many []*models.Person
		if many, err = p.CreateManyPeople(ctx, models.SamplePeople()); err != nil {
			return err
		}
		res = append([]*models.Person{one}, many...)

	case "create":
		res, err = p.CreateAndSavePerson(ctx, models.NewPerson(c.Create.Name, c.Create.Age, c.Create.Foods...))

	case "find-by-name":
		res, err = p.FindPeopleByName(ctx, c.FindByName.Name)

	case "find-by-food":
		res, err = p.FindOneByFood(ctx, c.FindByFood.Food)

	case "find-by-id":
		res, err = p.FindPersonByID(ctx, c.FindByID.ID)

	case "add-food":
		res, err = p.AddFavoriteFood(ctx, c.AddFood.ID, c.AddFood.Food)

	case "set-age":
		res, err = p.SetAge(ctx, c.SetAge.Name, c.SetAge.Age)

	case "remove":
		res, err = p.RemoveByID(ctx, c.Remove.ID)

	case "remove-many":
		res, err = p.RemoveManyPeople(ctx, c.RemoveMany.Name)

	case "query-chain":
		q := c.QueryChain
		res, err = p.Find().
			Where(models.FieldFavoriteFoods, q.Food).
			SortBy(q.Sort, !q.Desc).
			Limit(q.Limit).
			Exclude(q.Exclude...).
			Execute(ctx)
		if err == nil {
			res, err = omitFields(res, q.Exclude)
		}

	case "version":
		res = peoplestore.GetVersionInfo()

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}

	if err != nil {
		return err
	}
	return printJSON(w, res)
}

// omitFields re-encodes v as JSON objects without the given fields,
// so excluded fields are absent rather than zero.
func omitFields(v any, fields []string) (any, error) {
	if len(fields) == 0 {
		return v, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var docs []map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err = dec.Decode(&docs); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		for _, f := range fields {
			delete(doc, f)
		}
	}
	return docs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
