package explorer

import (
	"strings"
	"testing"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func strPtr(s string) *string { return &s }

func fixture() Input {
	a := schema.NewSnapshot()
	a.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "integer"})
	a.AddColumn("public.users", "email", schema.ColumnInfo{DataType: "text", IsNullable: true})
	a.AddColumn("public.audit", "id", schema.ColumnInfo{DataType: "bigint"})
	a.AddColumn("public.same", "id", schema.ColumnInfo{DataType: "integer"})
	a.AddIndex("public.audit", "audit_pkey", schema.IndexInfo{IsPrimary: true, IsUnique: true, Columns: []string{"id"},
		Definition: "CREATE UNIQUE INDEX audit_pkey ON public.audit USING btree (id)"})
	a.AddEnumLabel("public.mood", "happy")
	a.AddEnumLabel("public.mood", "sad")

	b := schema.NewSnapshot()
	b.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "bigint", Default: strPtr("0")})
	b.AddColumn("public.same", "id", schema.ColumnInfo{DataType: "integer"})
	b.AddColumn("public.orders", "id", schema.ColumnInfo{DataType: "integer"})
	b.AddEnumLabel("public.mood", "happy")

	return Input{DB1: "postgres://a@db1:5432/app", DB2: "postgres://b@db2:5432/app", Diff: schema.Diff(a, b), Snapshot1: a, Snapshot2: b}
}

func TestBuildEntries(t *testing.T) {
	in := fixture()

	entries := BuildEntries(in.Diff, false)
	var names []string
	for _, e := range entries {
		names = append(names, e.Status.marker()+" "+e.Name)
	}
	expected := []string{"< public.audit", "> public.orders", "~ public.users", "~ public.mood"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Fatalf("unexpected entries: %v", names)
	}

	all := BuildEntries(in.Diff, true)
	if len(all) != len(entries)+1 {
		t.Fatalf("expected identical table to be listed, got %d entries", len(all))
	}
	if BuildEntries(nil, true) != nil {
		t.Fatalf("expected no entries without a diff")
	}
}

func TestDetailsChangedTable(t *testing.T) {
	in := fixture()
	text := Details(in, Entry{Kind: KindTable, Name: "public.users", Status: StatusChanged})

	if !strings.Contains(text, "column email") {
		t.Fatalf("expected missing column in details:\n%s", text)
	}
	if !strings.Contains(text, "DB1: integer NOT NULL") || !strings.Contains(text, "DB2: bigint NOT NULL DEFAULT 0") {
		t.Fatalf("expected both column definitions:\n%s", text)
	}
}

func TestDetailsOneSidedTable(t *testing.T) {
	in := fixture()
	text := Details(in, Entry{Kind: KindTable, Name: "public.audit", Status: StatusOnlyDB1})

	if !strings.Contains(text, "Only in postgres://a@db1:5432/app") {
		t.Fatalf("expected origin line:\n%s", text)
	}
	if !strings.Contains(text, "CREATE UNIQUE INDEX audit_pkey") {
		t.Fatalf("expected index definition:\n%s", text)
	}

	in.Snapshot1 = nil
	if !strings.Contains(Details(in, Entry{Kind: KindTable, Name: "public.audit", Status: StatusOnlyDB1}), "snapshot unavailable") {
		t.Fatalf("expected placeholder without snapshot")
	}
}

func TestDetailsEnum(t *testing.T) {
	text := Details(fixture(), Entry{Kind: KindEnum, Name: "public.mood", Status: StatusChanged})
	if !strings.Contains(text, "DB1: happy, sad") || !strings.Contains(text, "DB2: happy") {
		t.Fatalf("unexpected enum details:\n%s", text)
	}
}

func TestLabelEscapesNames(t *testing.T) {
	label := Entry{Kind: KindTable, Name: "public.[weird]", Status: StatusOnlyDB2}.Label()
	if !strings.Contains(label, "public.[weird[]") {
		t.Fatalf("expected escaped name, got %q", label)
	}
}

func TestBrowserToggle(t *testing.T) {
	b := newBrowser(fixture())
	if b.list.GetItemCount() != 4 {
		t.Fatalf("expected 4 items, got %d", b.list.GetItemCount())
	}
	b.toggleSame()
	if b.list.GetItemCount() != 5 {
		t.Fatalf("expected 5 items after toggle, got %d", b.list.GetItemCount())
	}
	if !strings.Contains(b.status.GetText(false), "all objects") {
		t.Fatalf("expected status to reflect the filter")
	}
}

func TestBrowserIdenticalSchemas(t *testing.T) {
	s := schema.NewSnapshot()
	s.AddColumn("t", "id", schema.ColumnInfo{DataType: "integer"})
	b := newBrowser(Input{Diff: schema.Diff(s, s)})
	if b.list.GetItemCount() != 0 {
		t.Fatalf("expected empty list")
	}
	if !strings.Contains(b.details.GetText(false), "identical") {
		t.Fatalf("expected identical message")
	}
}

func TestRunRequiresDiff(t *testing.T) {
	if err := Run(Input{}); !errs.IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestHelpListsBindingsAndMarkers(t *testing.T) {
	text := helpText()
	for _, k := range bindings {
		if !strings.Contains(text, k.action) {
			t.Fatalf("help is missing %q", k.action)
		}
	}
	for _, want := range []string{"[green]<[-] only in DB1", "[aqua]>[-] only in DB2", "[yellow]~[-] changed", "[gray]=[-] identical"} {
		if !strings.Contains(text, want) {
			t.Fatalf("help is missing legend %q", want)
		}
	}
	if !strings.Contains(text, "  up/down   move through objects\n") {
		t.Fatalf("expected aligned key column, got %q", text)
	}
	if helpOverlay() == nil {
		t.Fatalf("expected a help overlay")
	}
}
