package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
	"gymdir/internal/storage/memory"
)

type cliTestEnv struct {
	eng *app.Engine
	cc  *commandContext
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	store := memory.New()
	eng := app.NewEngine(store, store, nil, reconcile.DefaultPolicy(), time.Minute)
	cc := newCommandContext(func(context.Context) (*app.Engine, func(), error) {
		return eng, func() {}, nil
	})
	return &cliTestEnv{eng: eng, cc: cc}
}

func (e *cliTestEnv) candidate(t *testing.T, name string) domain.Candidate {
	t.Helper()
	n := 2
	c, err := e.eng.Commands.CreateManual(context.Background(), domain.CandidateInput{
		Name:   name,
		Region: "Tokyo",
		City:   "Koto",
		Payload: domain.Payload{
			Equipments: []domain.EquipmentItem{{Slug: "smith-machine", Count: &n}},
		},
	})
	if err != nil {
		t.Fatalf("create candidate: %v", err)
	}
	return c
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(env.cc)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

func TestApprove_DryRunThenApply(t *testing.T) {
	env := setupCLITestEnv(t)
	c := env.candidate(t, "Iron Temple")
	id := itoa(c.ID)

	out, err := runCLI(t, env, "approve", id, "--dry-run")
	if err != nil {
		t.Fatalf("approve --dry-run: %v", err)
	}
	requireContains(t, out, "dry run: gym create \"iron-temple-koto-tokyo\"")
	requireContains(t, out, "insert=1")

	got, err := env.eng.Queries.GetDetail(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if got.Candidate.Status != domain.StatusNew {
		t.Fatalf("dry run changed status to %s", got.Candidate.Status)
	}

	out, err = runCLI(t, env, "approve", id)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	requireContains(t, out, "applied: gym create")
	requireContains(t, out, "candidate -> approved")

	if _, err := runCLI(t, env, "approve", id); err == nil {
		t.Fatal("approving twice should fail")
	}
}

func TestApprove_JSON(t *testing.T) {
	env := setupCLITestEnv(t)
	c := env.candidate(t, "Iron Temple")

	out, err := runCLI(t, env, "approve", itoa(c.ID), "--dry-run", "--json")
	if err != nil {
		t.Fatalf("approve --json: %v", err)
	}
	var got struct {
		Plan struct {
			Gym struct {
				Action string `json:"action"`
			} `json:"gym"`
		} `json:"plan"`
		DryRun bool `json:"dry_run"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Plan.Gym.Action != "create" || !got.DryRun {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	env := setupCLITestEnv(t)
	c := env.candidate(t, "Iron Temple")

	if _, err := runCLI(t, env, "reject", itoa(c.ID)); err == nil {
		t.Fatal("expected missing --reason to fail")
	}
	out, err := runCLI(t, env, "reject", itoa(c.ID), "--reason", "closed down")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	requireContains(t, out, "rejected (1 reasons)")

	out, err = runCLI(t, env, "show", itoa(c.ID))
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "closed down")
}

func TestClassifyAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	env.candidate(t, "Iron Temple")
	env.candidate(t, "Iron Temple")

	out, err := runCLI(t, env, "classify")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "new=1 reviewing=0 duplicate=1")

	out, err = runCLI(t, env, "list", "--status", "reviewing")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Iron Temple")
	requireContains(t, out, "tokyo/koto")

	if _, err := runCLI(t, env, "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestShow_InvalidID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "show", "abc"); err == nil {
		t.Fatal("expected invalid id to fail")
	}
	if _, err := runCLI(t, env, "show", "42"); err == nil {
		t.Fatal("expected unknown id to fail")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
