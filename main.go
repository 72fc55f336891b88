package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ipshipyard/sfsquery/sfsquery"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// modeEnv selects the lookup method when --mode is not given; "DNS" picks
// the DNSBL.
const modeEnv = "SFS_QUERY_METHOD"

func main() {
	err := godotenv.Load()
	if err == nil {
		fmt.Fprintln(os.Stderr, ".env found and loaded")
	}
	registerVersionMetric()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	mode        string
	endpoint    string
	zone        string
	nameserver  string
	resolvConf  string
	days        int
	output      string
	metricsFile string
	file        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sfsquery [flags] IP...",
		Short:         "Look up IP addresses in the StopForumSpam database",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Version = sfsquery.ModuleVersion()
	cmd.SetVersionTemplate("sfsquery {{.Version}}\n")

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", getenvDefault(modeEnv, "api"), "Lookup method: api|dns (env "+modeEnv+")")
	f.StringVar(&opts.endpoint, "endpoint", sfsquery.DefaultAPIEndpoint, "API URL prefix, the IP is appended")
	f.StringVar(&opts.zone, "zone", sfsquery.DefaultDNSBLZone, "DNSBL zone")
	f.StringVar(&opts.nameserver, "nameserver", "", "Send DNSBL queries to this nameserver (host[:port]) instead of the system resolver")
	f.StringVar(&opts.resolvConf, "resolv-conf", "", "Use the first nameserver from this resolv.conf file")
	f.IntVar(&opts.days, "days", sfsquery.DefaultReportWindowDays, "Report window for recently_reported, in days")
	f.StringVarP(&opts.output, "output", "o", "text", "Output format: text|json|yaml")
	f.StringVarP(&opts.file, "file", "f", "", "Read addresses from this file, one per line (- for stdin)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the lookups")
	cmd.MarkFlagsMutuallyExclusive("nameserver", "resolv-conf")

	return cmd
}

// report is the rendered outcome of one lookup.
type report struct {
	IP               string  `json:"ip" yaml:"ip"`
	Mode             string  `json:"mode" yaml:"mode"`
	Raw              string  `json:"raw,omitempty" yaml:"raw,omitempty"`
	Appears          bool    `json:"appears" yaml:"appears"`
	Confidence       float64 `json:"confidence" yaml:"confidence"`
	Frequency        int     `json:"frequency" yaml:"frequency"`
	LastSeen         int64   `json:"lastseen,omitempty" yaml:"lastseen,omitempty"`
	ASN              int     `json:"asn,omitempty" yaml:"asn,omitempty"`
	Country          string  `json:"country,omitempty" yaml:"country,omitempty"`
	RecentlyReported bool    `json:"recently_reported" yaml:"recently_reported"`
	Verdict          string  `json:"verdict" yaml:"verdict"`
	Error            string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func run(cmd *cobra.Command, opts *options, ips []string) error {
	mode, err := sfsquery.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	if opts.file != "" {
		targets, err := readTargetsFile(opts.file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		ips = append(ips, targets...)
	}
	if len(ips) == 0 {
		return errors.New("no addresses given")
	}

	clientOpts := []sfsquery.Option{
		sfsquery.WithMode(mode),
		sfsquery.WithAPIEndpoint(opts.endpoint),
		sfsquery.WithDNSBLZone(opts.zone),
	}
	switch {
	case opts.nameserver != "":
		clientOpts = append(clientOpts, sfsquery.WithNameserver(opts.nameserver))
	case opts.resolvConf != "":
		clientOpts = append(clientOpts, sfsquery.WithResolvConf(opts.resolvConf))
	}

	reports := make([]report, 0, len(ips))
	failed := 0
	for _, ip := range ips {
		c, err := sfsquery.New(ip, clientOpts...)
		if err != nil {
			return err
		}
		r := newReport(c, opts.days)
		if r.Error != "" {
			failed++
		}
		reports = append(reports, r)
	}

	if err := render(cmd.OutOrStdout(), opts.output, reports); err != nil {
		return err
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(ips))
	}
	return nil
}

func newReport(c *sfsquery.Client, days int) report {
	r := report{
		IP:               c.IP(),
		Mode:             c.Mode().String(),
		Raw:              c.RawResponse(),
		Appears:          c.Appears(),
		Confidence:       c.Confidence(),
		Frequency:        c.Frequency(),
		LastSeen:         c.LastSeen(),
		ASN:              c.ASN(),
		Country:          c.Country(),
		RecentlyReported: c.WasReportedInPastDays(days),
		Verdict:          c.Assess(sfsquery.DefaultPolicy).String(),
	}
	if err := c.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

func render(w io.Writer, format string, reports []report) error {
	switch strings.ToLower(format) {
	case "text", "":
		for _, r := range reports {
			fmt.Fprintln(w, formatText(r))
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.New("invalid output format: " + format + " (expected text, json or yaml)")
	}
}

func formatText(r report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t", r.IP)
	switch {
	case r.Error != "":
		fmt.Fprintf(&b, "error: %s", r.Error)
		return b.String()
	case !r.Appears:
		b.WriteString("not listed")
	default:
		fmt.Fprintf(&b, "listed confidence=%.2f frequency=%d", r.Confidence, r.Frequency)
		if r.LastSeen > 0 {
			fmt.Fprintf(&b, " lastseen=%s", time.Unix(r.LastSeen, 0).UTC().Format(time.DateTime))
		}
		if r.ASN != 0 {
			fmt.Fprintf(&b, " asn=%d", r.ASN)
		}
		if r.Country != "" {
			fmt.Fprintf(&b, " country=%s", r.Country)
		}
	}
	fmt.Fprintf(&b, " verdict=%s", r.Verdict)
	return b.String()
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func registerVersionMetric() {
	m := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "sfsquery",
		Name:        "info",
		Help:        "Information about the sfsquery build.",
		ConstLabels: prometheus.Labels{"version": sfsquery.ModuleVersion()},
	})
	prometheus.MustRegister(m)
	m.Set(1)
}
