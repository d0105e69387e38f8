package report

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/stretchr/testify/require"
)

var fixtureSchema = model.Schema{
	{Name: model.ColumnCaseNumber, Type: model.ColumnTypeText},
	{Name: model.ColumnDate, Type: model.ColumnTypeDatetime},
	{Name: model.ColumnIUCR, Type: model.ColumnTypeText},
	{Name: model.ColumnPrimaryType, Type: model.ColumnTypeText},
	{Name: model.ColumnLocationDescription, Type: model.ColumnTypeText},
	{Name: model.ColumnCommunityArea, Type: model.ColumnTypeInteger},
	{Name: model.ColumnYear, Type: model.ColumnTypeInteger},
}

// fixtureRecords holds eight incidents; the last one has a date no layout parses
// and the fourth has no community area.
var fixtureRecords = []model.Record{
	{"JA100001", "01/05/2015 10:30:00 AM", "0820", "THEFT", "STREET", "25", "2015"},
	{"JA100002", "01/06/2015 11:00:00 PM", "0486", "BATTERY", "RESIDENCE", "8", "2015"},
	{"JA100003", "02/10/2015 09:15:00 AM", "0820", "THEFT", "STREET", "25", "2015"},
	{"JA100004", "03/11/2016 01:45:00 PM", "2027", "NARCOTICS", "SIDEWALK", "", "2016"},
	{"JA100005", "07/04/2016 08:00:00 PM", "0820", "THEFT", "RESIDENCE", "43", "2016"},
	{"JA100006", "07/05/2016 08:00:00 PM", "0486", "BATTERY", "STREET", "43", "2016"},
	{"JA100007", "12/25/2016 08:00:00 PM", "0820", "THEFT", "STREET", "8", "2016"},
	{"JA100008", "UNKNOWN", "051A", "ASSAULT", "SIDEWALK", "25", "2017"},
}

// openFixture returns a handle to a store holding fixtureRecords in crime_data.
func openFixture(t *testing.T) *sql.DB {
	t.Helper()
	return openWith(t, fixtureSchema, fixtureRecords)
}

func openWith(t *testing.T, schema model.Schema, records []model.Record) *sql.DB {
	t.Helper()

	store, err := crimesql.OpenSQLite(filepath.Join(t.TempDir(), "crimes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.AppendBatch(context.Background(), model.DefaultRelation, schema, records))
	return store.DB()
}
