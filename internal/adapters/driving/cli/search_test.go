package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasFlags(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
	assert.NotNil(t, searchCmd.Flags().Lookup("type"))
	assert.NotNil(t, searchCmd.Flags().Lookup("json"))
}

func TestSearchCmd_EndToEnd(t *testing.T) {
	path, items := writeConfig(t, "")
	writeItem(t, items, "post-1", `{"contentType": "post", "fields": {"title": "Indexing with tokens"}}`)
	writeItem(t, items, "page-1", `{"contentType": "page", "fields": {"title": "About tokens"}}`)
	writeItem(t, items, "post-2", `{"contentType": "post", "fields": {"title": "Unrelated"}}`)

	_, err := execute(t, "sync", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "search", "tokens", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexing with tokens")
	assert.Contains(t, out, "About tokens")
	assert.NotContains(t, out, "Unrelated")

	out, err = execute(t, "search", "tokens", "--type", "post", "--json", "--config", path)
	require.NoError(t, err)

	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "post-1", results[0].Record.ObjectID())
}

func TestOutputSearchTable_Empty(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, outputSearchTable(cmd, nil))
	assert.Contains(t, buf.String(), "No results found.")
}

func TestOutputSearchTable_FallsBackToID(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	results := []domain.SearchResult{{
		Record:     domain.IndexRecord{domain.FieldObjectID: "asset-9", domain.FieldContentType: ""},
		Score:      1.5,
		Highlights: []string{"a [match] here"},
	}}
	require.NoError(t, outputSearchTable(cmd, results))

	out := buf.String()
	assert.Contains(t, out, "[1] asset-9 (1.50)")
	assert.Contains(t, out, "ID: asset-9")
	assert.Contains(t, out, "a [match] here")
}
