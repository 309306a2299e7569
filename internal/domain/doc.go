// Package domain models daily weather station observations, their curated
// reconciliation, and the ingestion bookkeeping that tracks provenance.
//
// # Data Source
//
// Weather observations arrive as one plain-text file per station. The file name
// without its extension is the station identifier, e.g. "USC00110072.txt" holds
// readings for station "USC00110072". Crop yield arrives as a single file of
// annual national values.
//
// # Weather Line Format
//
//	YYYYMMDD <max_tenths_c> <min_tenths_c> <precip_tenths_mm>
//
// Tokens are separated by tabs or spaces. All three readings are integers in
// tenths of their natural unit:
//
//	19850101	-22	-128	94   →  max -2.2 °C, min -12.8 °C, precip 9.4 mm
//
// Lines that do not split into exactly four tokens are skipped. A token that does
// split but fails to parse (bad date, non-integer reading) is fatal for the run.
//
// Unknown values:
//
//	-9999 is the sentinel for "no observation" in any reading column and is
//	stored as NULL. See [MissingValue].
//
// # Yield Line Format
//
//	<year> <yield>
//
// Both integers; yield is in thousands of metric tons.
//
// # Units
//
// Storage always holds fixed-point tenths. Conversion to degrees Celsius and
// centimeters happens only at the read boundary, see [TenthsToCelsius] and
// [TenthsMMToCM].
//
// # Reconciliation
//
// Every parsed line becomes an immutable [RawObservation] with a strictly
// increasing ID. The [CuratedObservation] for a (station, date) holds, per field,
// the value of the highest-ID raw row that carried a non-null value for that
// field. A [Conflict] records any raw value in a run that disagrees with the
// curated value it is compared against after the merge.
package domain
