// Command ordercsv writes order CSV exports straight from the database,
// without going through the HTTP server.
//
// Usage:
//
//	# Orders with one column per attribute definition
//	ordercsv attributes --from 2024-02-01 --to 2024-02-29 -o february.csv
//
//	# One line per order item, Shift_JIS with CRLF for spreadsheet imports
//	ordercsv items --charset sjis --line-ending crlf > items.csv
//
//	# List grouping strategies
//	ordercsv strategies
//
// Configuration comes from the same environment variables as the server
// (DATABASE_URL, EXPORT_*), optionally loaded from a .env file.
package main

func main() {
	Execute()
}
