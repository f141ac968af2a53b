package manifest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

const (
	csvSettingMarkerConstant               = "setting"
	csvCommentConstant                     = "#"
	csvQuoteConstant                       = "\""
	csvLineSeparatorConstant               = "\n"
	csvUnknownSettingErrorTemplateConstant = "%w: row %d: unknown setting %q"
	csvRowShapeErrorTemplateConstant       = "%w: row %d: expected path,url or setting,key,value"
)

// CSVCodec reads and writes the flat manifest format: one path,url row per repository, settings as
// setting,key,value rows, and # comments. A comment is a line whose first raw byte is # outside a
// quoted field, so a quoted "#path" stays a record.
type CSVCodec struct{}

// Decode implements Codec.
func (CSVCodec) Decode(content []byte) (Manifest, error) {
	reader := csv.NewReader(bytes.NewReader(stripCSVComments(content)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, readError := reader.ReadAll()
	if readError != nil {
		return Manifest{}, malformedDocumentError(readError)
	}

	var settings Settings
	records := make([]RepositoryRecord, 0, len(rows))
	for rowIndex, row := range rows {
		switch {
		case len(row) == 3 && strings.TrimSpace(row[0]) == csvSettingMarkerConstant:
			settingValue := strings.TrimSpace(row[2])
			switch strings.TrimSpace(row[1]) {
			case worktreeRootKeyConstant:
				settings.WorktreeRoot = settingValue
			case gitDirectoriesRootKeyConstant:
				settings.GitDirectoriesRoot = settingValue
			default:
				return Manifest{}, fmt.Errorf(csvUnknownSettingErrorTemplateConstant, ErrManifestCorrupt, rowIndex+1, row[1])
			}
		case len(row) == 2:
			records = append(records, RepositoryRecord{Path: row[0], URL: row[1]})
		case len(row) == 1 && len(strings.TrimSpace(row[0])) == 0:
			continue
		default:
			return Manifest{}, fmt.Errorf(csvRowShapeErrorTemplateConstant, ErrManifestCorrupt, rowIndex+1)
		}
	}
	return FromRecords(settings, records)
}

// Encode implements Codec.
func (CSVCodec) Encode(manifest Manifest) ([]byte, error) {
	var buffer bytes.Buffer
	rows := [][]string{
		{csvSettingMarkerConstant, worktreeRootKeyConstant, manifest.Settings.WorktreeRoot},
		{csvSettingMarkerConstant, gitDirectoriesRootKeyConstant, manifest.Settings.GitDirectoriesRoot},
	}
	for _, record := range manifest.records {
		rows = append(rows, []string{record.Path, record.URL})
	}
	for _, row := range rows {
		var rowBuffer bytes.Buffer
		rowWriter := csv.NewWriter(&rowBuffer)
		if writeError := rowWriter.Write(row); writeError != nil {
			return nil, writeError
		}
		rowWriter.Flush()
		if flushError := rowWriter.Error(); flushError != nil {
			return nil, flushError
		}
		buffer.Write(quoteLeadingComment(rowBuffer.Bytes(), row[0]))
	}
	return buffer.Bytes(), nil
}

// quoteLeadingComment quotes a first field that csv.Writer left bare although it starts with #.
// A bare field carries no quote, comma, or newline, so wrapping it verbatim is valid.
func quoteLeadingComment(line []byte, firstField string) []byte {
	if !bytes.HasPrefix(line, []byte(csvCommentConstant)) {
		return line
	}
	quoted := csvQuoteConstant + firstField + csvQuoteConstant
	return append([]byte(quoted), line[len(firstField):]...)
}

// stripCSVComments drops comment lines while tracking quoted fields that span lines.
func stripCSVComments(content []byte) []byte {
	var kept bytes.Buffer
	insideQuote := false
	for _, line := range strings.SplitAfter(string(content), csvLineSeparatorConstant) {
		if !insideQuote && strings.HasPrefix(line, csvCommentConstant) {
			continue
		}
		kept.WriteString(line)
		if strings.Count(line, csvQuoteConstant)%2 == 1 {
			insideQuote = !insideQuote
		}
	}
	return kept.Bytes()
}
