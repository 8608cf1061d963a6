package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/jobstore"
)

type fakeDoc struct {
	pages   []string
	pageErr map[int]error
	closed  bool
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) Page(index int) (domain.Page, error) {
	if err, ok := d.pageErr[index]; ok {
		return domain.Page{}, err
	}
	return domain.Page{Number: index + 1, Text: d.pages[index]}, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	doc *fakeDoc
	err error
}

func (o *fakeOpener) Open(string) (domain.Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

// finderFunc looks tables up by page number.
type finderFunc func(ctx context.Context, page domain.Page) ([]domain.Table, error)

func (f finderFunc) FindTables(ctx context.Context, page domain.Page) ([]domain.Table, error) {
	return f(ctx, page)
}

func byPage(tables map[int][]domain.Table) finderFunc {
	return func(_ context.Context, page domain.Page) ([]domain.Table, error) {
		return tables[page.Number], nil
	}
}

func table(rows ...[]string) domain.Table {
	t := make(domain.Table, len(rows))
	for i, row := range rows {
		t[i] = make([]*string, len(row))
		for j, v := range row {
			if v != "" {
				t[i][j] = domain.Cell(v)
			}
		}
	}
	return t
}

func pages(n int) *fakeDoc {
	return &fakeDoc{pages: make([]string, n)}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func artifactNames(t *testing.T, store *jobstore.Store, id string) []string {
	t.Helper()
	artifacts, err := store.Artifacts(id)
	require.NoError(t, err)
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	return names
}

func newTestService(t *testing.T, opener domain.DocumentOpener, finder domain.TableFinder, opts ...Option) (*Service, *jobstore.Store) {
	t.Helper()
	store := jobstore.NewStore(t.TempDir())
	return NewService(opener, finder, store, opts...), store
}

func TestService_SingleTable(t *testing.T) {
	doc := pages(1)
	svc, store := newTestService(t, &fakeOpener{doc: doc}, byPage(map[int][]domain.Table{
		1: {table([]string{"Name", "Qty"}, []string{"Bolt", "4"})},
	}))

	job := domain.Job{ID: "job1", SourcePath: "in.pdf"}
	status := svc.Process(context.Background(), job, nil)

	assert.Equal(t, jobstore.KindSuccess, status.Kind)
	assert.True(t, doc.closed)

	recorded, err := store.Read(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.KindSuccess, recorded.Kind)

	records := readCSV(t, filepath.Join(store.JobDir(job.ID), "page_1_table_no_1.csv"))
	assert.Equal(t, [][]string{{"Name", "Qty"}, {"Bolt", "4"}}, records)
}

func TestService_MultipleTablesAcrossPages(t *testing.T) {
	grid := table([]string{"a", "b"}, []string{"c", "d"})
	svc, store := newTestService(t, &fakeOpener{doc: pages(3)}, byPage(map[int][]domain.Table{
		1: {grid, grid},
		3: {grid},
	}))

	status := svc.Process(context.Background(), domain.Job{ID: "multi"}, nil)

	assert.Equal(t, jobstore.KindSuccess, status.Kind)
	assert.Equal(t,
		[]string{"page_1_table_no_1.csv", "page_1_table_no_2.csv", "page_3_table_no_1.csv"},
		artifactNames(t, store, "multi"))
}

func TestService_AbsentCellsBecomeEmptyFields(t *testing.T) {
	svc, store := newTestService(t, &fakeOpener{doc: pages(1)}, byPage(map[int][]domain.Table{
		1: {table([]string{"x", "", "y"}, []string{"", "z", "w"})},
	}))

	status := svc.Process(context.Background(), domain.Job{ID: "gaps"}, nil)
	require.Equal(t, jobstore.KindSuccess, status.Kind)

	records := readCSV(t, filepath.Join(store.JobDir("gaps"), "page_1_table_no_1.csv"))
	assert.Equal(t, [][]string{{"x", "", "y"}, {"", "z", "w"}}, records)
}

func TestService_RaggedTableFailsAndRemovesArtifacts(t *testing.T) {
	good := table([]string{"a", "b"}, []string{"c", "d"})
	ragged := table([]string{"a", "b", "c"}, []string{"d", "", ""}, []string{"e", "f", "g"})
	svc, store := newTestService(t, &fakeOpener{doc: pages(2)}, byPage(map[int][]domain.Table{
		1: {good},
		2: {good, ragged},
	}))

	status := svc.Process(context.Background(), domain.Job{ID: "ragged"}, nil)

	assert.Equal(t, jobstore.KindFailure, status.Kind)
	assert.Equal(t, 400, status.Code)
	assert.Equal(t, "page 2 table 2: row 2 has 1 non-empty cells, expected 3", status.Message)
	assert.Empty(t, artifactNames(t, store, "ragged"))

	recorded, err := store.Read("ragged")
	require.NoError(t, err)
	assert.Equal(t, status, recorded)
}

func TestService_NoTables(t *testing.T) {
	svc, store := newTestService(t, &fakeOpener{doc: pages(2)}, byPage(nil))

	status := svc.Process(context.Background(), domain.Job{ID: "empty"}, nil)

	assert.Equal(t, jobstore.KindNoTables, status.Kind)
	recorded, err := store.Read("empty")
	require.NoError(t, err)
	assert.Equal(t, jobstore.KindNoTables, recorded.Kind)
	assert.Empty(t, artifactNames(t, store, "empty"))
}

func TestService_EmptySecondPage(t *testing.T) {
	finder := byPage(map[int][]domain.Table{
		1: {table([]string{"h1", "h2"}, []string{"a", "b"}, []string{"c", "d"})},
	})

	tests := []struct {
		name   string
		policy EmptyPagePolicy
		want   jobstore.Kind
	}{
		{name: "skip", policy: SkipEmptyPages, want: jobstore.KindSuccess},
		{name: "abort", policy: AbortOnEmptyPage, want: jobstore.KindNoTables},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, &fakeOpener{doc: pages(2)}, finder, WithEmptyPagePolicy(tt.policy))

			status := svc.Process(context.Background(), domain.Job{ID: "two"}, nil)
			assert.Equal(t, tt.want, status.Kind)

			// the page-1 artifact is kept either way
			assert.Equal(t, []string{"page_1_table_no_1.csv"}, artifactNames(t, store, "two"))
			records := readCSV(t, filepath.Join(store.JobDir("two"), "page_1_table_no_1.csv"))
			assert.Len(t, records, 3)
		})
	}
}

func TestService_AbortStopsAtFirstEmptyPage(t *testing.T) {
	grid := table([]string{"a", "b"}, []string{"c", "d"})
	svc, store := newTestService(t, &fakeOpener{doc: pages(3)}, byPage(map[int][]domain.Table{
		1: {grid},
		3: {grid},
	}), WithEmptyPagePolicy(AbortOnEmptyPage))

	status := svc.Process(context.Background(), domain.Job{ID: "stop"}, nil)

	assert.Equal(t, jobstore.KindNoTables, status.Kind)
	assert.Equal(t, []string{"page_1_table_no_1.csv"}, artifactNames(t, store, "stop"))
}

func TestService_OpenFailure(t *testing.T) {
	svc, store := newTestService(t, &fakeOpener{err: errors.New("no objects found")}, byPage(nil))

	status := svc.Process(context.Background(), domain.Job{ID: "corrupt"}, nil)

	assert.Equal(t, jobstore.Failure(500, "failed to open PDF: no objects found"), status)
	recorded, err := store.Read("corrupt")
	require.NoError(t, err)
	assert.Equal(t, status, recorded)
}

func TestService_OpenFailureIsAlwaysServerSide(t *testing.T) {
	opener := &fakeOpener{err: domain.NotFoundError("file does not exist: in.pdf", nil)}
	svc, _ := newTestService(t, opener, byPage(nil))

	status := svc.Process(context.Background(), domain.Job{ID: "gone"}, nil)

	assert.Equal(t, 500, status.Code)
	assert.Equal(t, "failed to open PDF: file does not exist: in.pdf", status.Message)
}

func TestService_PageReadError(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", ""}, pageErr: map[int]error{1: errors.New("bad content stream")}}
	grid := table([]string{"a", "b"}, []string{"c", "d"})
	svc, store := newTestService(t, &fakeOpener{doc: doc}, byPage(map[int][]domain.Table{1: {grid}}))

	status := svc.Process(context.Background(), domain.Job{ID: "page"}, nil)

	assert.Equal(t, 500, status.Code)
	assert.Equal(t, "failed to read page 2: bad content stream", status.Message)
	assert.Empty(t, artifactNames(t, store, "page"))
}

func TestService_FinderPanicIsRecorded(t *testing.T) {
	finder := finderFunc(func(context.Context, domain.Page) ([]domain.Table, error) {
		panic("index out of range")
	})
	doc := pages(1)
	svc, store := newTestService(t, &fakeOpener{doc: doc}, finder)

	var status jobstore.Status
	require.NotPanics(t, func() {
		status = svc.Process(context.Background(), domain.Job{ID: "boom"}, nil)
	})

	assert.Equal(t, jobstore.KindFailure, status.Kind)
	assert.Equal(t, 500, status.Code)
	assert.Contains(t, status.Message, "index out of range")
	assert.True(t, doc.closed)

	recorded, err := store.Read("boom")
	require.NoError(t, err)
	assert.Equal(t, 500, recorded.Code)
}

func TestService_FinderError(t *testing.T) {
	finder := finderFunc(func(context.Context, domain.Page) ([]domain.Table, error) {
		return nil, errors.New("layout engine failed")
	})
	svc, _ := newTestService(t, &fakeOpener{doc: pages(1)}, finder)

	status := svc.Process(context.Background(), domain.Job{ID: "finder"}, nil)

	assert.Equal(t, 500, status.Code)
	assert.Equal(t, "table detection failed on page 1: layout engine failed", status.Message)
}

func TestService_ArtifactWriteFailure(t *testing.T) {
	grid := table([]string{"a", "b"}, []string{"c", "d"})
	svc, store := newTestService(t, &fakeOpener{doc: pages(1)}, byPage(map[int][]domain.Table{1: {grid, grid}}))

	// a directory in place of the second artifact makes its write fail
	require.NoError(t, os.MkdirAll(filepath.Join(store.JobDir("io"), "page_1_table_no_2.csv"), 0o755))

	status := svc.Process(context.Background(), domain.Job{ID: "io"}, nil)

	assert.Equal(t, 500, status.Code)
	assert.Contains(t, status.Message, "failed to write page_1_table_no_2.csv")
	assert.Empty(t, artifactNames(t, store, "io"))
}

func TestService_PendingVisibleDuringParse(t *testing.T) {
	store := jobstore.NewStore(t.TempDir())
	var seen jobstore.Status
	finder := finderFunc(func(context.Context, domain.Page) ([]domain.Table, error) {
		var err error
		seen, err = store.Read("slow")
		if err != nil {
			return nil, err
		}
		return []domain.Table{table([]string{"a", "b"}, []string{"c", "d"})}, nil
	})
	svc := NewService(&fakeOpener{doc: pages(1)}, finder, store)

	status := svc.Process(context.Background(), domain.Job{ID: "slow"}, nil)

	assert.Equal(t, jobstore.KindSuccess, status.Kind)
	assert.Equal(t, jobstore.Pending(), seen)
}

func TestService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, store := newTestService(t, &fakeOpener{doc: pages(2)}, byPage(nil))
	status := svc.Process(ctx, domain.Job{ID: "cancel"}, nil)

	assert.Equal(t, 503, status.Code)
	assert.Equal(t, "extraction interrupted: context canceled", status.Message)

	recorded, err := store.Read("cancel")
	require.NoError(t, err)
	assert.Equal(t, status, recorded)
}

func TestService_RunRecordsOutcome(t *testing.T) {
	svc, store := newTestService(t, &fakeOpener{doc: pages(1)}, byPage(map[int][]domain.Table{
		1: {table([]string{"a", "b"}, []string{"c", "d"})},
	}))

	var runner domain.Runner = svc
	runner.Run(context.Background(), domain.Job{ID: "run"})

	recorded, err := store.Read("run")
	require.NoError(t, err)
	assert.Equal(t, jobstore.KindSuccess, recorded.Kind)
}

func TestService_EmitsEvents(t *testing.T) {
	svc, _ := newTestService(t, &fakeOpener{doc: pages(2)}, byPage(map[int][]domain.Table{
		1: {table([]string{"a", "b"}, []string{"c", "d"})},
	}))

	events := make(chan domain.StreamEvent, 32)
	svc.Process(context.Background(), domain.Job{ID: "events"}, events)
	close(events)

	var types []domain.EventType
	for e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventStart,
		domain.EventPageProcessing,
		domain.EventTableWritten,
		domain.EventPageComplete,
		domain.EventPageProcessing,
		domain.EventComplete,
	}, types)
}

func TestValidateTable(t *testing.T) {
	assert.NoError(t, validateTable(nil))
	assert.NoError(t, validateTable(table([]string{"a", "", "b"}, []string{"", "c", "d"})))

	// whitespace-only cells count as empty
	ws := table([]string{"a", "b"}, []string{"c", "d"})
	ws[1] = append(ws[1], domain.Cell("   "))
	assert.NoError(t, validateTable(ws))

	err := validateTable(table([]string{"a", "b"}, []string{"c", "d"}, []string{"e", ""}))
	require.Error(t, err)
	assert.Equal(t, "row 3 has 1 non-empty cells, expected 2", err.Error())
}
