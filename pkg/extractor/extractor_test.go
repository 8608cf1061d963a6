package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-tables/internal/domain"
)

type stubDoc struct{ text string }

func (d stubDoc) PageCount() int { return 1 }
func (d stubDoc) Page(int) (domain.Page, error) {
	return domain.Page{Number: 1, Text: d.text}, nil
}
func (d stubDoc) Close() error { return nil }

type stubOpener struct{}

func (stubOpener) Open(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return stubDoc{text: string(data)}, nil
}

func newClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{OutputDir: t.TempDir(), Opener: stubOpener{}})
	require.NoError(t, err)
	return c
}

func writeInput(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestClient_Extract(t *testing.T) {
	c := newClient(t)
	events := make(chan StreamEvent, 16)

	res, err := c.Extract(context.Background(), writeInput(t, "a  b\nc  d\n"), events)
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	require.Len(t, res.Artifacts, 1)
	assert.True(t, strings.HasSuffix(res.Artifacts[0], "page_1_table_no_1.csv"))
	assert.NotEmpty(t, events)

	again, err := c.Status(res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestClient_ExtractNoTables(t *testing.T) {
	c := newClient(t)

	res, err := c.Extract(context.Background(), writeInput(t, "prose only"), nil)
	require.NoError(t, err)
	assert.Equal(t, "no_tables", res.Status)
	assert.Empty(t, res.Artifacts)
}

func TestClient_MissingInput(t *testing.T) {
	c := newClient(t)

	_, err := c.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), nil)
	assert.Equal(t, 400, domain.HTTPStatus(err))

	_, err = c.Process(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestClient_ProcessStreamsUntilComplete(t *testing.T) {
	c := newClient(t)

	events, err := c.Process(context.Background(), writeInput(t, "a  b\nc  d\n"))
	require.NoError(t, err)

	var last StreamEvent
	for e := range events {
		last = e
	}
	assert.Equal(t, EventComplete, last.Type)
}

func TestClient_Status(t *testing.T) {
	c := newClient(t)

	_, err := c.Status("20240101_000000000000")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = c.Status("../etc")
	assert.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{OutputDir: t.TempDir(), EmptyPagePolicy: "sometimes"})
	assert.Error(t, err)

	_, err = NewClient(Config{OutputDir: t.TempDir(), IDStrategy: "serial"})
	assert.Error(t, err)
}
