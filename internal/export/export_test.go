package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopinsight/shopinsight/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transcript = []session.Message{
	{Role: session.RoleUser, Content: "Which category is the most expensive?"},
	{Role: session.RoleAssistant, Content: "Jewelery, at $533.33 on average.\nElectronics follow, \"by far\"."},
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", f.ContentType())

	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, transcript))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"role", "content"},
		{"user", transcript[0].Content},
		{"assistant", transcript[1].Content},
	}, records)
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "role,content\n", buf.String())
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, append(transcript, session.Message{Role: session.RoleUser, Content: "Café ☕"})))

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestWrite_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, transcript[:1]))
	assert.Contains(t, buf.String(), "user,Which category is the most expensive?")

	assert.Error(t, Write(&buf, Format("xml"), transcript))
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", roleLabel(session.RoleUser))
	assert.Equal(t, "Assistant", roleLabel(session.RoleAssistant))
	assert.Equal(t, "", roleLabel(""))
}
