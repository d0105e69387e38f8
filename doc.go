// Package crimesql loads a crime-incident export into a single local SQLite
// file, batch by batch, so that the descriptive reports in the report package
// can be run against it.
//
// The source is read lazily as a restartable sequence of bounded batches
// (BatchReader) and appended in order through the store's bulk-append
// capability (Appender). SQLiteStore is the Appender backed by one SQLite file.
//
// # Features
//
//   - Load CSV, TSV, Parquet, and Excel (XLSX, first sheet) sources
//   - Automatic handling of compressed files (gzip, bzip2, xz, zstandard)
//   - Fixed-size batches, 50,000 rows by default
//   - Column projection that keeps the source header order
//   - Column type inference from a fixed sample of leading rows
//   - Per-batch or whole-file atomicity
//
// # Basic Usage
//
// The simplest way to load a file is the Load function:
//
//	result, err := crimesql.Load(ctx, "crimes.db", "Crimes_2001_to_Present.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d rows in %s\n", result.Rows, result.Relation)
//
// # Advanced Usage
//
// Build a Loader to control the relation, the batch size and the policies:
//
//	store, err := crimesql.OpenSQLite("crimes.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	loader := crimesql.NewLoader(store,
//	    crimesql.WithIncidentColumns(),
//	    crimesql.WithLoadChunkSize(10000),
//	    crimesql.WithAtomicity(crimesql.AtomicityAll),
//	    crimesql.WithExistingPolicy(crimesql.ExistingFail),
//	)
//	result, err := loader.LoadFile(ctx, "Crimes_2001_to_Present.csv.gz")
//
// # Errors
//
// Failures carry one of the sentinel errors ErrSourceNotFound,
// ErrSchemaMismatch, ErrIOFailure, ErrRelationNotEmpty, ErrNotRestartable or
// ErrUnsupported. Match them with errors.Is. Nothing is retried; fix the input
// or the target and run the load again.
package crimesql
