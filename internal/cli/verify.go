package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/espace-classe/internal/auth"
	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/database/establishments"
	"github.com/mrlokans/espace-classe/internal/database/identities"
	"github.com/mrlokans/espace-classe/internal/demo"
	"github.com/mrlokans/espace-classe/internal/entities"
)

// ErrVerificationFailed is returned by VerifyCommand.Run when a check errored.
var ErrVerificationFailed = errors.New("verification failed")

type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckWarning CheckStatus = "warning"
	CheckError   CheckStatus = "error"
)

// CheckResult is the outcome of one verification check.
type CheckResult struct {
	Section string
	Name    string
	Status  CheckStatus
	Message string
}

type Report struct {
	Results []CheckResult
}

func (r *Report) add(section, name string, status CheckStatus, format string, args ...any) {
	r.Results = append(r.Results, CheckResult{
		Section: section,
		Name:    name,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	})
}

// Count returns how many results carry status.
func (r *Report) Count(status CheckStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// VerifyCommand checks that a database is ready to serve: tables, password
// hashing, tenant relations and the demo accounts.
type VerifyCommand struct {
	Database          config.Database
	EstablishmentCode string
	Out               io.Writer
}

func NewVerifyCommand(cfg config.Database) *VerifyCommand {
	return &VerifyCommand{
		Database:          cfg,
		EstablishmentCode: config.DemoEstablishmentCode,
		Out:               os.Stdout,
	}
}

func (cmd *VerifyCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)

	driver := string(cmd.Database.Driver)
	fs.StringVar(&driver, "driver", driver, "Database driver (sqlite or postgres)")
	fs.StringVar(&cmd.Database.Path, "db", cmd.Database.Path, "Path to the sqlite database file")
	fs.StringVar(&cmd.Database.DSN, "dsn", cmd.Database.DSN, "Postgres connection string")
	fs.StringVar(&cmd.EstablishmentCode, "establishment", cmd.EstablishmentCode, "Establishment code holding the demo accounts")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s verify [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Check tables, password hashing, tenant relations and demo accounts.\n")
		fmt.Fprintf(os.Stderr, "Exits non-zero when a check fails.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.Database.Driver = config.DatabaseDriver(driver)
	return nil
}

func (cmd *VerifyCommand) Run() error {
	fmt.Fprintln(cmd.Out, "Database Verification")
	fmt.Fprintln(cmd.Out, "=====================")

	db, err := database.NewDatabase(cmd.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	report := cmd.Verify(context.Background(), db)
	cmd.print(report)

	if report.Count(CheckError) > 0 {
		return ErrVerificationFailed
	}
	return nil
}

// Verify runs every check against db.
func (cmd *VerifyCommand) Verify(ctx context.Context, db *database.Database) *Report {
	report := &Report{}
	cmd.checkTables(ctx, db, report)
	checkPasswordHashing(ctx, report)

	idRepo := identities.NewRepository(db.DB)
	checkRelations(ctx, idRepo, report)
	cmd.checkDemoAccounts(ctx, establishments.NewRepository(db.DB), idRepo, report)
	return report
}

func (cmd *VerifyCommand) checkTables(ctx context.Context, db *database.Database, report *Report) {
	counts, failures := db.TableCounts(ctx)

	names := make([]string, 0, len(counts)+len(failures))
	for name := range counts {
		names = append(names, name)
	}
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err, failed := failures[name]; failed {
			report.add("tables", name, CheckError, "not accessible: %v", err)
			continue
		}
		report.add("tables", name, CheckOK, "%d rows", counts[name])
	}
}

func checkPasswordHashing(ctx context.Context, report *Report) {
	const sample = "TestPassword123!"
	verifier := auth.HashVerifier{}

	hash, err := auth.HashPassword(sample, bcrypt.MinCost)
	if err != nil {
		report.add("passwords", "hash", CheckError, "hashing failed: %v", err)
		return
	}
	report.add("passwords", "hash", CheckOK, "bcrypt hash produced")

	ok, err := verifier.VerifyPassword(ctx, sample, hash)
	switch {
	case err != nil:
		report.add("passwords", "verify", CheckError, "verification failed: %v", err)
		return
	case !ok:
		report.add("passwords", "verify", CheckError, "hash does not verify its own password")
		return
	}

	if ok, _ := verifier.VerifyPassword(ctx, sample+"x", hash); ok {
		report.add("passwords", "verify", CheckError, "wrong password accepted")
		return
	}
	report.add("passwords", "verify", CheckOK, "round trip ok")
}

func checkRelations(ctx context.Context, repo *identities.Repository, report *Report) {
	profiles, err := repo.OrphanedProfiles(ctx)
	switch {
	case err != nil:
		report.add("relations", "profiles -> establishments", CheckError, "check failed: %v", err)
	case len(profiles) > 0:
		report.add("relations", "profiles -> establishments", CheckWarning, "%d profiles without establishment", len(profiles))
	default:
		report.add("relations", "profiles -> establishments", CheckOK, "all relations valid")
	}

	students, err := repo.OrphanedStudents(ctx)
	switch {
	case err != nil:
		report.add("relations", "students -> establishments", CheckError, "check failed: %v", err)
	case len(students) > 0:
		report.add("relations", "students -> establishments", CheckWarning, "%d students without establishment", len(students))
	default:
		report.add("relations", "students -> establishments", CheckOK, "all relations valid")
	}
}

func (cmd *VerifyCommand) checkDemoAccounts(ctx context.Context, est *establishments.Repository, ids *identities.Repository, report *Report) {
	establishment, err := est.GetByCode(ctx, cmd.EstablishmentCode)
	if err != nil {
		status := CheckError
		if errors.Is(err, database.ErrNotFound) {
			status = CheckWarning
		}
		for _, account := range demo.Accounts {
			report.add("accounts", account.Username, status, "establishment %s not found (run cmd/seed_demo)", cmd.EstablishmentCode)
		}
		return
	}

	verifier := auth.HashVerifier{}
	for _, account := range demo.Accounts {
		hash, err := findPasswordHash(ctx, ids, account.Role, establishment.ID, account.Username)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				report.add("accounts", account.Username, CheckWarning, "account not found (run cmd/seed_demo)")
			} else {
				report.add("accounts", account.Username, CheckError, "lookup failed: %v", err)
			}
			continue
		}

		ok, err := verifier.VerifyPassword(ctx, account.Password, hash)
		switch {
		case err != nil:
			report.add("accounts", account.Username, CheckWarning, "%s - %v", account.Role, err)
		case ok:
			report.add("accounts", account.Username, CheckOK, "%s - authentication ok", account.Role)
		default:
			report.add("accounts", account.Username, CheckWarning, "%s - password differs", account.Role)
		}
	}
}

func findPasswordHash(ctx context.Context, ids *identities.Repository, role entities.Role, establishmentID, username string) (string, error) {
	switch role {
	case entities.RoleStaff:
		p, err := ids.FindStaff(ctx, establishmentID, username)
		if err != nil {
			return "", err
		}
		return p.PasswordHash, nil
	case entities.RoleTeacher:
		t, err := ids.FindTeacher(ctx, establishmentID, username)
		if err != nil {
			return "", err
		}
		return t.PasswordHash, nil
	default:
		s, err := ids.FindStudent(ctx, establishmentID, username)
		if err != nil {
			return "", err
		}
		return s.PasswordHash, nil
	}
}

func (cmd *VerifyCommand) print(report *Report) {
	section := ""
	for _, res := range report.Results {
		if res.Section != section {
			section = res.Section
			fmt.Fprintf(cmd.Out, "\n=== %s ===\n", section)
		}
		fmt.Fprintf(cmd.Out, "  [%s] %s: %s\n", statusLabel(res.Status), res.Name, res.Message)
	}

	fmt.Fprintln(cmd.Out, "\n=== Summary ===")
	fmt.Fprintf(cmd.Out, "OK: %d\n", report.Count(CheckOK))
	fmt.Fprintf(cmd.Out, "Warnings: %d\n", report.Count(CheckWarning))
	fmt.Fprintf(cmd.Out, "Errors: %d\n", report.Count(CheckError))

	switch {
	case report.Count(CheckError) > 0:
		fmt.Fprintln(cmd.Out, "\nErrors detected. Run the server once to migrate, then cmd/seed_demo, then verify again.")
	case report.Count(CheckWarning) > 0:
		fmt.Fprintln(cmd.Out, "\nWarnings detected, database is usable.")
	default:
		fmt.Fprintln(cmd.Out, "\nDatabase is correctly configured!")
	}
}

func statusLabel(s CheckStatus) string {
	switch s {
	case CheckOK:
		return "OK"
	case CheckWarning:
		return "WARN"
	}
	return "ERROR"
}
