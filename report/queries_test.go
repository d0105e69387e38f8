package report

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/crimesql/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	t.Parallel()

	db := openFixture(t)

	tests := []struct {
		name        string
		run         Func
		wantName    string
		wantColumns []string
		wantRows    [][]any
	}{
		{
			name:        "iucr summary",
			run:         IUCRSummary,
			wantName:    NameIUCRSummary,
			wantColumns: []string{"Crime Type", "IUCR Code", "Count"},
			wantRows: [][]any{
				{"THEFT", "0820", int64(4)},
				{"BATTERY", "0486", int64(2)},
				{"ASSAULT", "051A", int64(1)},
				{"NARCOTICS", "2027", int64(1)},
				{"ASSAULT", "051A", int64(1)},
				{"NARCOTICS", "2027", int64(1)},
				{"BATTERY", "0486", int64(2)},
				{"THEFT", "0820", int64(4)},
			},
		},
		{
			name:        "iucr counts",
			run:         IUCRCounts,
			wantName:    NameIUCRCounts,
			wantColumns: []string{"IUCR", "Count"},
			wantRows: [][]any{
				{"0820", int64(4)},
				{"0486", int64(2)},
				{"051A", int64(1)},
				{"2027", int64(1)},
			},
		},
		{
			name:        "iucr cumulative share",
			run:         IUCRCumulativeShare,
			wantName:    NameIUCRCumulativeShare,
			wantColumns: []string{"Rank", "IUCR", "Cumulative Percentage"},
			wantRows: [][]any{
				{int64(1), "0820", 50.0},
				{int64(2), "0486", 75.0},
				{int64(3), "051A", 87.5},
				{int64(4), "2027", 100.0},
			},
		},
		{
			name:        "top crime types",
			run:         TopCrimeTypes,
			wantName:    NameTopCrimeTypes,
			wantColumns: []string{"Primary Type", "Crime Count"},
			wantRows: [][]any{
				{"THEFT", int64(4)},
				{"BATTERY", int64(2)},
				{"ASSAULT", int64(1)},
				{"NARCOTICS", int64(1)},
			},
		},
		{
			name:        "crime type share",
			run:         CrimeTypeShare,
			wantName:    NameCrimeTypeShare,
			wantColumns: []string{"Primary Type", "Crime Count"},
			wantRows: [][]any{
				{"THEFT", int64(4)},
				{"BATTERY", int64(2)},
				{"ASSAULT", int64(1)},
				{"NARCOTICS", int64(1)},
				{OtherCrimeType, int64(0)},
			},
		},
		{
			name:        "crimes by year",
			run:         CrimesByYear,
			wantName:    NameCrimesByYear,
			wantColumns: []string{"Year", "Total Crimes"},
			wantRows: [][]any{
				{int64(2015), int64(3)},
				{int64(2016), int64(4)},
				{int64(2017), int64(1)},
			},
		},
		{
			name:        "crimes by year and type",
			run:         CrimesByYearAndType,
			wantName:    NameCrimesByYearAndType,
			wantColumns: []string{"Year", "Primary Type", "Crime Count"},
			wantRows: [][]any{
				{int64(2015), "ASSAULT", int64(0)},
				{int64(2015), "BATTERY", int64(1)},
				{int64(2015), "NARCOTICS", int64(0)},
				{int64(2015), "THEFT", int64(2)},
				{int64(2016), "ASSAULT", int64(0)},
				{int64(2016), "BATTERY", int64(1)},
				{int64(2016), "NARCOTICS", int64(1)},
				{int64(2016), "THEFT", int64(2)},
				{int64(2017), "ASSAULT", int64(1)},
				{int64(2017), "BATTERY", int64(0)},
				{int64(2017), "NARCOTICS", int64(0)},
				{int64(2017), "THEFT", int64(0)},
			},
		},
		{
			name:        "top locations",
			run:         TopLocations,
			wantName:    NameTopLocations,
			wantColumns: []string{"Location", "Crime Count"},
			wantRows: [][]any{
				{"STREET", int64(4)},
				{"RESIDENCE", int64(2)},
				{"SIDEWALK", int64(2)},
			},
		},
		{
			name:        "crime types by top location",
			run:         CrimeTypesByTopLocation,
			wantName:    NameCrimeTypesByTopLocation,
			wantColumns: []string{"Location Description", "THEFT", "BATTERY", "ASSAULT", "NARCOTICS"},
			wantRows: [][]any{
				{"STREET", int64(3), int64(1), int64(0), int64(0)},
				{"RESIDENCE", int64(1), int64(1), int64(0), int64(0)},
				{"SIDEWALK", int64(0), int64(0), int64(1), int64(1)},
			},
		},
		{
			name:        "crimes by weekday skips unparseable dates",
			run:         CrimesByWeekday,
			wantName:    NameCrimesByWeekday,
			wantColumns: []string{"Day of Week", "Number of Crimes"},
			wantRows: [][]any{
				{"Monday", int64(2)},
				{"Tuesday", int64(3)},
				{"Wednesday", int64(0)},
				{"Thursday", int64(0)},
				{"Friday", int64(1)},
				{"Saturday", int64(0)},
				{"Sunday", int64(1)},
			},
		},
		{
			name:        "crimes by month",
			run:         CrimesByMonth,
			wantName:    NameCrimesByMonth,
			wantColumns: []string{"Month", "Number of Crimes"},
			wantRows: [][]any{
				{"January", int64(2)},
				{"February", int64(1)},
				{"March", int64(1)},
				{"April", int64(0)},
				{"May", int64(0)},
				{"June", int64(0)},
				{"July", int64(2)},
				{"August", int64(0)},
				{"September", int64(0)},
				{"October", int64(0)},
				{"November", int64(0)},
				{"December", int64(1)},
			},
		},
		{
			name:        "crimes by community area leaves out nulls",
			run:         CrimesByCommunityArea,
			wantName:    NameCrimesByCommunityArea,
			wantColumns: []string{"Community Area", "Community Count"},
			wantRows: [][]any{
				{int64(8), int64(2)},
				{int64(25), int64(3)},
				{int64(43), int64(2)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table, err := tt.run(context.Background(), db, model.DefaultRelation)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, table.Name)
			assert.Equal(t, tt.wantColumns, table.Columns)
			assert.Equal(t, tt.wantRows, table.Rows)
		})
	}
}

func TestYearOverYearChange(t *testing.T) {
	t.Parallel()

	table, err := YearOverYearChange(context.Background(), openFixture(t), model.DefaultRelation)
	require.NoError(t, err)

	assert.Equal(t, []string{"Year", "YoY Change (%)"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, int64(2015), table.Rows[0][0])
	assert.Nil(t, table.Rows[0][1])
	assert.InDelta(t, 33.333, table.Rows[1][1], 0.001)
	assert.InDelta(t, -75.0, table.Rows[2][1], 0.001)
}

func TestMonthlyCountsByType(t *testing.T) {
	t.Parallel()

	table, err := MonthlyCountsByType(context.Background(), openFixture(t), model.DefaultRelation)
	require.NoError(t, err)

	assert.Equal(t, []string{"Primary Type", "Month", "Count"}, table.Columns)
	// ASSAULT only appears on an unparseable date.
	require.Len(t, table.Rows, 3*12)

	got := make(map[string]int64)
	for _, row := range table.Rows {
		if n := row[2].(int64); n > 0 {
			got[row[0].(string)+"/"+row[1].(string)] = n
		}
	}
	assert.Equal(t, map[string]int64{
		"BATTERY/January": 1,
		"BATTERY/July":    1,
		"NARCOTICS/March": 1,
		"THEFT/January":   1,
		"THEFT/February":  1,
		"THEFT/July":      1,
		"THEFT/December":  1,
	}, got)
	assert.Equal(t, []any{"BATTERY", "January", int64(1)}, table.Rows[0])
	assert.Equal(t, []any{"THEFT", "December", int64(1)}, table.Rows[len(table.Rows)-1])
}

func TestReports_LimitsAndFolding(t *testing.T) {
	t.Parallel()

	// 20 types with five incidents each, THEFT with 20 and RARE with one.
	var records []model.Record
	for i := range 20 {
		for range 5 {
			records = append(records, model.Record{string(rune('A' + i)), "STREET"})
		}
	}
	for range 20 {
		records = append(records, model.Record{"THEFT", "STREET"})
	}
	schema := model.Schema{
		{Name: model.ColumnPrimaryType, Type: model.ColumnTypeText},
		{Name: model.ColumnLocationDescription, Type: model.ColumnTypeText},
	}
	records = append(records, model.Record{"RARE", "ALLEY"})
	db := openWith(t, schema, records)
	ctx := context.Background()

	t.Run("top crime types keeps fifteen", func(t *testing.T) {
		t.Parallel()

		table, err := TopCrimeTypes(ctx, db, model.DefaultRelation)
		require.NoError(t, err)
		require.Len(t, table.Rows, 15)
		assert.Equal(t, []any{"THEFT", int64(20)}, table.Rows[0])
		assert.Equal(t, []any{"A", int64(5)}, table.Rows[1])
	})

	t.Run("minor types fold into OTHER", func(t *testing.T) {
		t.Parallel()

		table, err := CrimeTypeShare(ctx, db, model.DefaultRelation)
		require.NoError(t, err)
		require.Len(t, table.Rows, 22)
		assert.Equal(t, []any{OtherCrimeType, int64(1)}, table.Rows[21])
		for _, row := range table.Rows[:21] {
			assert.NotEqual(t, "RARE", row[0])
		}
	})
}

func TestReports_MissingColumns(t *testing.T) {
	t.Parallel()

	schema := model.Schema{{Name: model.ColumnCaseNumber, Type: model.ColumnTypeText}}
	db := openWith(t, schema, []model.Record{{"JA100001"}})

	for _, def := range Definitions() {
		t.Run(def.Name, func(t *testing.T) {
			t.Parallel()

			_, err := def.Run(context.Background(), db, model.DefaultRelation)
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestReports_RelationNotFound(t *testing.T) {
	t.Parallel()

	db := openFixture(t)
	_, err := TopCrimeTypes(context.Background(), db, "no_such_relation")
	assert.ErrorIs(t, err, ErrRelationNotFound)
}

func TestReports_ColumnNamesAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	schema := model.Schema{{Name: "primary type", Type: model.ColumnTypeText}}
	db := openWith(t, schema, []model.Record{{"THEFT"}, {"THEFT"}})

	table, err := TopCrimeTypes(context.Background(), db, model.DefaultRelation)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"THEFT", int64(2)}}, table.Rows)
}

func TestAll(t *testing.T) {
	t.Parallel()

	t.Run("every report in order", func(t *testing.T) {
		t.Parallel()

		tables, err := All(context.Background(), openFixture(t), model.DefaultRelation)
		require.NoError(t, err)

		defs := Definitions()
		require.Len(t, tables, len(defs))
		for i, def := range defs {
			assert.Equal(t, def.Name, tables[i].Name)
		}
	})

	t.Run("reports lacking columns are skipped", func(t *testing.T) {
		t.Parallel()

		schema := model.Schema{
			{Name: model.ColumnPrimaryType, Type: model.ColumnTypeText},
			{Name: model.ColumnYear, Type: model.ColumnTypeInteger},
		}
		db := openWith(t, schema, []model.Record{{"THEFT", "2015"}})

		tables, err := All(context.Background(), db, model.DefaultRelation)
		assert.ErrorIs(t, err, ErrMissingColumn)

		names := make([]string, len(tables))
		for i, table := range tables {
			names[i] = table.Name
		}
		assert.Equal(t, []string{
			NameTopCrimeTypes,
			NameCrimeTypeShare,
			NameCrimesByYear,
			NameYearOverYearChange,
			NameCrimesByYearAndType,
		}, names)
	})

	t.Run("other errors stop the run", func(t *testing.T) {
		t.Parallel()

		_, err := All(context.Background(), openFixture(t), "no_such_relation")
		assert.True(t, errors.Is(err, ErrRelationNotFound), "error = %v", err)
	})
}

func TestTable(t *testing.T) {
	t.Parallel()

	table := &Table{
		Name:    "t",
		Columns: []string{"a", "b"},
		Rows:    [][]any{{"x", int64(1)}, {"y", int64(2)}},
	}
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 1, table.Column("b"))
	assert.Equal(t, -1, table.Column("c"))

	values, err := table.Values("b")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, values)

	_, err = table.Values("c")
	assert.ErrorIs(t, err, ErrMissingColumn)

	var empty *Table
	assert.Zero(t, empty.Len())
}
