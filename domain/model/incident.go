package model

// DefaultRelation is the relation incident records are loaded into.
const DefaultRelation = "crime_data"

// Incident source column names, exactly as they appear in the export header.
const (
	ColumnID                  = "ID"
	ColumnCaseNumber          = "Case Number"
	ColumnDate                = "Date"
	ColumnBlock               = "Block"
	ColumnIUCR                = "IUCR"
	ColumnPrimaryType         = "Primary Type"
	ColumnDescription         = "Description"
	ColumnLocationDescription = "Location Description"
	ColumnArrest              = "Arrest"
	ColumnDomestic            = "Domestic"
	ColumnBeat                = "Beat"
	ColumnDistrict            = "District"
	ColumnWard                = "Ward"
	ColumnCommunityArea       = "Community Area"
	ColumnFBICode             = "FBI Code"
	ColumnXCoordinate         = "X Coordinate"
	ColumnYCoordinate         = "Y Coordinate"
	ColumnYear                = "Year"
	ColumnUpdatedOn           = "Updated On"
	ColumnLatitude            = "Latitude"
	ColumnLongitude           = "Longitude"
	ColumnLocation            = "Location"
)

// IncidentHeader is the full header of the incident export.
var IncidentHeader = Header{
	ColumnID, ColumnCaseNumber, ColumnDate, ColumnBlock, ColumnIUCR,
	ColumnPrimaryType, ColumnDescription, ColumnLocationDescription,
	ColumnArrest, ColumnDomestic, ColumnBeat, ColumnDistrict, ColumnWard,
	ColumnCommunityArea, ColumnFBICode, ColumnXCoordinate, ColumnYCoordinate,
	ColumnYear, ColumnUpdatedOn, ColumnLatitude, ColumnLongitude, ColumnLocation,
}

// IncidentColumns is the fixed column subset retained by an incident load.
func IncidentColumns() []string {
	return []string{
		ColumnCaseNumber,
		ColumnDate,
		ColumnBlock,
		ColumnIUCR,
		ColumnPrimaryType,
		ColumnDescription,
		ColumnLocationDescription,
		ColumnArrest,
		ColumnDomestic,
		ColumnFBICode,
		ColumnYear,
		ColumnUpdatedOn,
	}
}
