package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/loadmap/api/internal/backend"
	"github.com/loadmap/api/internal/config"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/manifest"
	"github.com/loadmap/api/internal/service"
	"github.com/loadmap/api/migrations"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// cliActor is recorded in the audit trail for changes made from loadctl.
var cliActor = service.Actor{UserID: uuid.Nil, Login: "loadctl"}

// loadConfig reads the environment, then lets the global flags override it.
func loadConfig(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if d := c.String("driver"); d != "" {
		cfg.DatabaseDriver = strings.ToLower(d)
	}
	if u := c.String("database-url"); u != "" {
		cfg.DatabaseURL = u
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func withStore(c *cli.Context, fn func(ctx context.Context, store database.Store, log *logrus.Logger) error) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver == "memory" {
		return errors.New("loadctl needs a persistent database driver")
	}
	store, closeStore, err := backend.Open(c.Context, cfg, false, log)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(c.Context, store, log)
}

// --- migrate ---

func migrateCommand() *cli.Command {
	run := func(apply func(driver, url string) error, done string) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := apply(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
				return err
			}
			log.WithField("driver", cfg.DatabaseDriver).Info(done)
			return nil
		}
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back schema migrations",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply all pending migrations", Action: run(migrations.Up, "migrations applied")},
			{Name: "down", Usage: "roll back one migration", Action: run(migrations.Down, "migration rolled back")},
		},
	}
}

// --- user ---

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "manage users",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "create a user unless the login already exists",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "login", Required: true, EnvVars: []string{"SEED_LOGIN"}},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"SEED_PASSWORD"}},
					&cli.StringFlag{Name: "name", Value: "Administrator"},
					&cli.StringFlag{Name: "access", Value: enum.AccessLevelFull, Usage: "FULL or VIEW_ONLY"},
					&cli.StringSliceFlag{Name: "modules", Value: cli.NewStringSlice("ALL"), Usage: "ORDERS, LOADS, LOGS or ALL"},
				},
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store database.Store, log *logrus.Logger) error {
						return addUser(ctx, store, log, c.String("login"), c.String("password"), c.String("name"),
							c.String("access"), c.StringSlice("modules"))
					})
				},
			},
		},
	}
}

func addUser(ctx context.Context, store database.Querier, log logrus.FieldLogger, login, password, name, access string, moduleNames []string) error {
	access = strings.ToUpper(access)
	if access != enum.AccessLevelFull && access != enum.AccessLevelViewOnly {
		return fmt.Errorf("access must be FULL or VIEW_ONLY, got %q", access)
	}
	modules, ok := enum.ParseModules(moduleNames...)
	if !ok || modules == 0 {
		return fmt.Errorf("invalid modules %v", moduleNames)
	}

	existing, err := store.GetUserByLogin(ctx, login)
	if err == nil {
		log.WithFields(logrus.Fields{"login": login, "id": existing.ID}).Info("user already exists, skipping")
		return nil
	}
	if !errors.Is(err, database.ErrNoRows) {
		return fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err := store.CreateUser(ctx, database.CreateUserParams{
		Login:          login,
		HashedPassword: string(hashed),
		FullName:       name,
		AccessLevel:    database.AccessLevel(access),
		Modules:        modules,
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	log.WithFields(logrus.Fields{"login": login, "id": user.ID, "modules": modules.Names()}).Info("created user")
	return nil
}

// --- catalog ---

// catalogFile is the YAML layout accepted by "catalog import".
type catalogFile struct {
	Products []struct {
		Description string          `yaml:"description"`
		UnitWeight  decimal.Decimal `yaml:"unit_weight"`
		WeightMode  string          `yaml:"weight_mode"`
	} `yaml:"products"`
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "manage the product catalog",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "register the products listed in a YAML file",
				ArgsUsage: "<file.yaml>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("catalog import needs exactly one file", 2)
					}
					data, err := os.ReadFile(c.Args().First())
					if err != nil {
						return err
					}
					return withStore(c, func(ctx context.Context, store database.Store, log *logrus.Logger) error {
						n, err := importCatalog(ctx, store, log, data)
						if err != nil {
							return err
						}
						log.WithField("registered", n).Info("catalog imported")
						return nil
					})
				},
			},
		},
	}
}

// importCatalog registers every product of a YAML catalog whose description
// is not known yet. It returns how many products were added.
func importCatalog(ctx context.Context, store database.Querier, log logrus.FieldLogger, data []byte) (int, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse catalog: %w", err)
	}

	catalog := service.NewCatalogService(store, service.NewAuditService(store, log))
	added := 0
	for _, p := range file.Products {
		if _, err := catalog.Resolve(ctx, p.Description); err == nil {
			log.WithField("product", p.Description).Info("product already registered, skipping")
			continue
		}
		if _, err := catalog.Register(ctx, cliActor, service.RegisterProductRequest{
			Description: p.Description,
			UnitWeight:  p.UnitWeight,
			WeightMode:  p.WeightMode,
		}); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// --- manifest ---

func manifestCommand() *cli.Command {
	return &cli.Command{
		Name:      "manifest",
		Usage:     "print the CSV load manifest of PENDING orders",
		ArgsUsage: "<order id>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "capacity", Usage: "truck capacity in kg (defaults to TRUCK_CAPACITY_KG)"},
		},
		Action: func(c *cli.Context) error {
			var ids []int64
			for _, arg := range c.Args().Slice() {
				var id int64
				if _, err := fmt.Sscan(arg, &id); err != nil {
					return cli.Exit(fmt.Sprintf("invalid order id %q", arg), 2)
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				return cli.Exit("manifest needs at least one order id", 2)
			}

			var capacity decimal.Decimal
			if s := c.String("capacity"); s != "" {
				var err error
				if capacity, err = decimal.NewFromString(s); err != nil {
					return cli.Exit(fmt.Sprintf("invalid capacity %q", s), 2)
				}
			}

			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}
			return withStore(c, func(ctx context.Context, store database.Store, log *logrus.Logger) error {
				lifecycle := service.NewLifecycleService(store, service.NewAuditService(store, log), log, cfg.TruckCapacityKg)
				preview, err := lifecycle.PreviewLoad(ctx, service.PreviewLoadRequest{OrderIDs: ids, CapacityKg: capacity})
				if err != nil {
					return err
				}
				if err := manifest.WriteCSV(c.App.Writer, preview.Matrix); err != nil {
					return err
				}
				fmt.Fprintln(c.App.ErrWriter, preview.Capacity.Message())
				return nil
			})
		},
	}
}
