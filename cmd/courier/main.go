// Courier exports store orders and customers to CSV files in configurable
// column formats and delivers them by email, HTTP, FTP or SFTP.
//
// Usage:
//
//	# Start the API server, export workers and scheduler
//	courier run --config courier.yaml
//
//	# Export two orders with the active format
//	courier export --type orders --ids 1001,1002 --out orders.csv
//
//	# Load records from a JSON dump
//	courier records import --file dump.json
//
//	# Manage custom formats
//	courier formats list --type orders
//	courier formats add --file warehouse.yaml
//
//	# Show version information
//	courier version
package main

import (
	"fmt"
	"os"

	"mercator-hq/courier/pkg/cli"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
