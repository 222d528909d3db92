package cmd

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/http"
)

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Check a single endpoint without a suite file",
	Long: `Fetch one endpoint, run the requested assertions and print the report.

The endpoint is given either as a URL or through --protocol, --host,
--prefix and --path. Assertions run in a fixed order: status, json,
numeric, keys, contains, equals, schema.

Examples:
  verif check http://localhost:8080/api/?done --status 200 --json --key fr --key de
  verif check --host l10n.example.org --prefix api/ --path count --numeric
  verif check https://example.org/version --equals 1.4.2`,
	Args: cobra.MaximumNArgs(1),
	RunE: checkCommand,
}

var (
	checkTitleFlag    string
	checkProtocolFlag string
	checkHostFlag     string
	checkPrefixFlag   string
	checkPathFlag     string
	checkStatusFlag   int
	checkJSONFlag     bool
	checkNumericFlag  bool
	checkKeysFlag     []string
	checkContainsFlag []string
	checkEqualsFlag   string
	checkSchemaFlag   string
	checkTimeoutFlag  time.Duration
	checkNoColorFlag  bool
)

func init() {
	checkCmd.Flags().StringVar(&checkTitleFlag, "title", "", "Report title (default: the URL)")
	checkCmd.Flags().StringVar(&checkProtocolFlag, "protocol", checker.DefaultProtocol, "Protocol when no URL is given")
	checkCmd.Flags().StringVar(&checkHostFlag, "host", checker.DefaultHost, "Host when no URL is given")
	checkCmd.Flags().StringVar(&checkPrefixFlag, "prefix", "", "Path prefix when no URL is given")
	checkCmd.Flags().StringVar(&checkPathFlag, "path", "", "Path when no URL is given")

	checkCmd.Flags().IntVar(&checkStatusFlag, "status", 0, "Expected HTTP status code")
	checkCmd.Flags().BoolVar(&checkJSONFlag, "json", false, "Content must be a JSON object or array")
	checkCmd.Flags().BoolVar(&checkNumericFlag, "numeric", false, "Content must be a number")
	checkCmd.Flags().StringArrayVar(&checkKeysFlag, "key", nil, "Top-level JSON key that must exist (repeatable)")
	checkCmd.Flags().StringArrayVar(&checkContainsFlag, "contains", nil, "Substring the content must contain (repeatable)")
	checkCmd.Flags().StringVar(&checkEqualsFlag, "equals", "", "Exact expected content")
	checkCmd.Flags().StringVar(&checkSchemaFlag, "schema", "", "JSON Schema file the content must match")

	checkCmd.Flags().DurationVar(&checkTimeoutFlag, "timeout", 30*time.Second, "Request timeout")
	checkCmd.Flags().BoolVar(&checkNoColorFlag, "no-color", getEnvBool("VERIF_NO_COLOR", false), "Disable colored output (env: VERIF_NO_COLOR)")
}

func checkCommand(cmd *cobra.Command, args []string) error {
	protocol, host, path := checkProtocolFlag, checkHostFlag, checkPathFlag
	prefix := checkPrefixFlag
	if len(args) == 1 {
		u, err := url.Parse(args[0])
		if err != nil || u.Scheme == "" || u.Host == "" {
			return exitWith(ExitUsageError, fmt.Errorf("invalid URL %q", args[0]))
		}
		protocol, host = u.Scheme, u.Host
		prefix = ""
		path = strings.TrimPrefix(u.RequestURI(), "/")
	}

	title := checkTitleFlag
	if title == "" {
		title = protocol + "://" + host + "/" + prefix + path
	}

	client := http.NewClient(http.WithTimeout(checkTimeoutFlag))
	c := checker.New(title,
		checker.WithFetcher(client),
		checker.WithOutput(cmd.OutOrStdout()),
		checker.WithNoColor(checkNoColorFlag || color.NoColor),
	)
	c.SetProtocol(protocol).SetHost(host).SetPathPrefix(prefix).SetPath(path)

	c.FetchContent()
	if checkStatusFlag != 0 {
		c.HasResponseCode(checkStatusFlag)
	}
	if checkJSONFlag {
		c.IsJSON()
	}
	if checkNumericFlag {
		c.IsNumeric()
	}
	if len(checkKeysFlag) > 0 {
		c.HasKeys(checkKeysFlag)
	}
	for _, s := range checkContainsFlag {
		c.Contains(s)
	}
	if cmd.Flags().Changed("equals") {
		c.IsEqualTo(checkEqualsFlag)
	}
	if checkSchemaFlag != "" {
		c.MatchesSchema(checkSchemaFlag)
	}

	if c.Report() == checker.StatusPassed {
		return nil
	}
	if !c.Fetched() && client.LastError() != nil {
		return exitWith(ExitNetworkError, nil)
	}
	return exitWith(ExitTestFailure, nil)
}
