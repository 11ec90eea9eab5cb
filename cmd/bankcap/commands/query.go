package commands

import (
	"bankcap/internal/query"
	"bankcap/lib/serviceutil"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var queryTimeout time.Duration

func init() {
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Per query timeout.")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>...",
	Short: "Runs read-only queries against the configured store.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		db := openStore(cfg)
		defer db.Close()

		runner := query.Runner{DB: db, Timeout: queryTimeout}
		for _, q := range args {
			result, err := runner.Run(cmd.Context(), q)
			if err != nil {
				db.Close()
				serviceutil.Fatal("query failed", err, "query", q)
			}
			fmt.Println(q)
			result.Render(os.Stdout)
			fmt.Println()
		}
	},
}
