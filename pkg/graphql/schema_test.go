package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graphql-go/graphql"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/versioning"
)

type schemaEnv struct {
	pids     *pidstore.MemoryStore
	rels     *relations.MemoryStore
	registry *relations.Registry
	schema   graphql.Schema
}

func newSchemaEnv(t *testing.T) *schemaEnv {
	t.Helper()
	env := &schemaEnv{
		pids:     pidstore.NewMemoryStore(),
		rels:     relations.NewMemoryStore(),
		registry: relations.DefaultRegistry(),
	}
	schema, err := GenerateSchema(NewResolver(env.pids, env.rels, env.registry))
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}
	env.schema = schema
	return env
}

func (e *schemaEnv) registered(t *testing.T, pidType, value string) *pidstore.PID {
	t.Helper()
	ctx := context.Background()
	pid, err := e.pids.Create(ctx, pidType, value)
	if err != nil {
		t.Fatalf("failed to create pid: %v", err)
	}
	pid, err = e.pids.SetStatus(ctx, pid.ID, pidstore.StatusRegistered)
	if err != nil {
		t.Fatalf("failed to register pid: %v", err)
	}
	return pid
}

func (e *schemaEnv) execute(t *testing.T, q string) map[string]any {
	t.Helper()
	result := graphql.Do(graphql.Params{
		Schema:        e.schema,
		RequestString: q,
		Context:       context.Background(),
	})
	if result.HasErrors() {
		t.Fatalf("query failed: %v", result.Errors)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %T", result.Data)
	}
	return data
}

func TestQueryHealth(t *testing.T) {
	env := newSchemaEnv(t)
	data := env.execute(t, `{ health }`)
	if data["health"] != "ok" {
		t.Errorf("expected ok, got %v", data["health"])
	}
}

func TestQueryPID(t *testing.T) {
	env := newSchemaEnv(t)
	env.registered(t, "doi", "10.1234/abc")

	data := env.execute(t, `{ pid(type: "doi", value: "10.1234/abc") { type value status } }`)
	pid, ok := data["pid"].(map[string]any)
	if !ok {
		t.Fatalf("expected pid object, got %v", data["pid"])
	}
	if pid["value"] != "10.1234/abc" || pid["status"] != "R" {
		t.Errorf("unexpected pid: %v", pid)
	}
}

func TestQueryPIDNotFound(t *testing.T) {
	env := newSchemaEnv(t)
	data := env.execute(t, `{ pid(type: "doi", value: "missing") { value } }`)
	if data["pid"] != nil {
		t.Errorf("expected null pid, got %v", data["pid"])
	}
}

func TestQueryVersionChain(t *testing.T) {
	ctx := context.Background()
	env := newSchemaEnv(t)

	head := env.registered(t, "doi", "10.1234/head")
	v0 := env.registered(t, "doi", "10.1234/v0")
	v1 := env.registered(t, "doi", "10.1234/v1")

	chain, err := versioning.NewChain(env.rels, env.pids, head, env.registry)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	if _, err := chain.InsertVersion(ctx, v0, -1); err != nil {
		t.Fatalf("InsertVersion failed: %v", err)
	}
	if _, err := chain.InsertVersion(ctx, v1, -1); err != nil {
		t.Fatalf("InsertVersion failed: %v", err)
	}

	data := env.execute(t, `{
		pid(type: "doi", value: "10.1234/head") {
			children { value }
			latestVersion { value }
		}
	}`)
	pid := data["pid"].(map[string]any)

	children, ok := pid["children"].([]any)
	if !ok || len(children) != 2 {
		t.Fatalf("expected 2 children, got %v", pid["children"])
	}
	first := children[0].(map[string]any)
	if first["value"] != "10.1234/v0" {
		t.Errorf("expected v0 first, got %v", first["value"])
	}

	latest, ok := pid["latestVersion"].(map[string]any)
	if !ok || latest["value"] != "10.1234/v1" {
		t.Errorf("expected latest v1, got %v", pid["latestVersion"])
	}

	// The child sees its parent
	data = env.execute(t, `{ pid(type: "doi", value: "10.1234/v0") { parents { value } } }`)
	parents := data["pid"].(map[string]any)["parents"].([]any)
	if len(parents) != 1 || parents[0].(map[string]any)["value"] != "10.1234/head" {
		t.Errorf("expected head as parent, got %v", parents)
	}
}

func TestQueryRelationTypes(t *testing.T) {
	env := newSchemaEnv(t)
	data := env.execute(t, `{ relationTypes { name ordered } }`)

	types, ok := data["relationTypes"].([]any)
	if !ok || len(types) != 2 {
		t.Fatalf("expected 2 relation types, got %v", data["relationTypes"])
	}
	first := types[0].(map[string]any)
	if first["name"] != "version" || first["ordered"] != true {
		t.Errorf("expected ordered version type first, got %v", first)
	}
}

func TestQueryUnknownRelationType(t *testing.T) {
	env := newSchemaEnv(t)
	env.registered(t, "doi", "10.1234/abc")

	result := graphql.Do(graphql.Params{
		Schema:        env.schema,
		RequestString: `{ pid(type: "doi", value: "10.1234/abc") { children(relationType: "bogus") { value } } }`,
		Context:       context.Background(),
	})
	if !result.HasErrors() {
		t.Error("expected unknown relation type error")
	}
}

func TestHTTPHandler(t *testing.T) {
	env := newSchemaEnv(t)
	env.registered(t, "recid", "42")
	handler := NewHandler(env.schema)

	body, _ := json.Marshal(Request{Query: `{ pid(type: "recid", value: "42") { status } }`})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response Response
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", response.Errors)
	}

	data := response.Data.(map[string]any)
	if data["pid"].(map[string]any)["status"] != "R" {
		t.Errorf("unexpected response data: %v", response.Data)
	}

	// GET is not allowed
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", rec.Code)
	}
}
