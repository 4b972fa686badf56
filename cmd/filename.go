package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
)

var filenameCmd = &cobra.Command{
	Use:   "filename",
	Short: "Encode or decode standard export file names",
}

var filenameEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Render platform_domain[_sub]_granularity_YYYYMMDD_HHMMSS.ext",
	RunE: func(cmd *cobra.Command, _ []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		domain, _ := cmd.Flags().GetString("domain")
		subDomain, _ := cmd.Flags().GetString("sub-domain")
		granularity, _ := cmd.Flags().GetString("granularity")
		ext, _ := cmd.Flags().GetString("ext")
		at, _ := cmd.Flags().GetString("at")

		var ts time.Time
		if at != "" {
			parsed, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at %q: %w", at, err)
			}
			ts = parsed
		}

		name, err := ingest.EncodeFilename(ingest.NameParts{
			Platform:    platform,
			Domain:      domain,
			SubDomain:   subDomain,
			Granularity: granularity,
			Ext:         ext,
			Timestamp:   ts,
		})
		if err != nil {
			return errs.Wrap(err, "encode filename")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
			return errs.Wrap(err, "write filename")
		}
		return nil
	},
}

var filenameDecodeCmd = &cobra.Command{
	Use:   "decode NAME",
	Short: "Parse a standard export file name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := ingest.DecodeFilename(args[0])
		if err != nil {
			return errs.Wrap(err, "decode filename")
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(map[string]string{
			"platform":     parsed.Platform,
			"domain":       parsed.Domain,
			"sub_domain":   parsed.SubDomain,
			"granularity":  parsed.Granularity,
			"timestamp":    parsed.Timestamp.Format(time.RFC3339),
			"ext":          parsed.Ext,
			"template_key": parsed.TemplateKey,
		}); err != nil {
			return errs.Wrap(err, "write decoded filename")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filenameCmd)
	filenameCmd.AddCommand(filenameEncodeCmd, filenameDecodeCmd)

	filenameEncodeCmd.Flags().String("platform", "", "Platform code")
	filenameEncodeCmd.Flags().String("domain", "", "Data domain")
	filenameEncodeCmd.Flags().String("sub-domain", "", "Optional sub-domain")
	filenameEncodeCmd.Flags().String("granularity", "", "daily|weekly|monthly|snapshot|...")
	filenameEncodeCmd.Flags().String("ext", "xlsx", "File extension")
	filenameEncodeCmd.Flags().String("at", "", "Timestamp as RFC3339 (default: now, UTC)")
	_ = filenameEncodeCmd.MarkFlagRequired("platform")
	_ = filenameEncodeCmd.MarkFlagRequired("domain")
	_ = filenameEncodeCmd.MarkFlagRequired("granularity")
}
