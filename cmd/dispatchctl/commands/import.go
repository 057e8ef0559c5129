package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/datanorm"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv | s3://bucket/key>",
	Short: "Deduplicate and import contacts",
	Long: `Reads a CSV of company, email and fax columns, resolves it against
the existing contacts and inserts the accepted rows. A row whose email
field cannot be parsed aborts the import before anything is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := readSource(ctx, args[0], a.Config.Import.S3Region, a.Config.Import.S3Profile)
	if err != nil {
		return err
	}

	report, err := a.Importer.Import(ctx, rows)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(report)
	}
	fmt.Printf("rows: %d  inserted: %d  email dropped: %d  rejected: %d\n",
		report.Total, report.Inserted, report.EmailDropped, len(report.Rejected))
	for _, d := range report.Rejected {
		fmt.Printf("  row %d: %s\n", d.Row, d.Reason)
	}
	return nil
}

func readSource(ctx context.Context, src, region, profile string) ([]datanorm.RawContact, error) {
	if strings.HasPrefix(src, "s3://") {
		bucket, key, err := datanorm.ParseS3URI(src)
		if err != nil {
			return nil, err
		}
		s3src, err := datanorm.NewS3Source(ctx, bucket, region, profile)
		if err != nil {
			return nil, err
		}
		return s3src.ReadContacts(ctx, key)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return datanorm.ReadContacts(f)
}
