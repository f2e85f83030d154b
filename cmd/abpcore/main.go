package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bnema/abpcore/internal/config"
	"github.com/bnema/abpcore/internal/elemhide"
	"github.com/bnema/abpcore/internal/fetcher"
	"github.com/bnema/abpcore/internal/filter"
	"github.com/bnema/abpcore/internal/matcher"
	"github.com/bnema/abpcore/internal/metrics"
	"github.com/bnema/abpcore/internal/notifier"
	"github.com/bnema/abpcore/internal/storage"
	"github.com/bnema/abpcore/internal/subscription"
)

var (
	cfgFile     string
	metricsAddr string
	verbose     bool

	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "abpcore",
	Short: "Parse and query Adblock Plus filter lists",
	Long: `A tool around the abpcore filter engine: it parses ABP filter lists,
answers request blocking queries and looks up element-hiding selectors.`,
	PersistentPreRunE: setup,
}

var parseCmd = &cobra.Command{
	Use:   "parse <file-or-url>",
	Short: "Parse a filter list and print its metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var matchCmd = &cobra.Command{
	Use:   "match <request-url>",
	Short: "Check a request URL against the configured lists",
	Args:  cobra.ExactArgs(1),
	RunE:  runMatch,
}

var selectorsCmd = &cobra.Command{
	Use:   "selectors <host>",
	Short: "Print the hiding selectors for a document host",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelectors,
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List configured filter lists",
	RunE:  runLists,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/abpcore.toml)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	matchCmd.Flags().String("domain", "", "document host the request originates from")
	matchCmd.Flags().String("type", "other", "request type (script, image, ...)")
	matchCmd.Flags().Bool("third-party", false, "treat the request as third-party")
	matchCmd.Flags().String("sitekey", "", "sitekey asserted by the document")

	rootCmd.AddCommand(parseCmd, matchCmd, selectorsCmd, listsCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	metrics.Init()
	filter.SetPatternMatcher(matcher.New())
	notifier.SetSink(&logSink{log: log})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// logSink forwards engine notifications to the structured log.
type logSink struct {
	log *zap.Logger
}

func (s *logSink) FilterChange(topic notifier.Topic, f notifier.Filter) {
	if f == nil {
		return
	}
	s.log.Debug("filter change",
		zap.Stringer("topic", topic),
		zap.String("text", f.Text()))
}

func (s *logSink) SubscriptionChange(topic notifier.Topic, sub notifier.Subscription) {
	if sub == nil {
		return
	}
	s.log.Debug("subscription change",
		zap.Stringer("topic", topic),
		zap.String("id", sub.ID()))
}

// loadBody reads a filter-list body from a local file or downloads it.
func loadBody(ctx context.Context, source string) (string, error) {
	if _, err := os.Stat(source); err == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	f := fetcher.New(cfg.HTTP, log)
	data, err := f.Fetch(ctx, source)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadSubscription parses one list body into a downloadable subscription.
func loadSubscription(ctx context.Context, source string) (*subscription.Downloadable, error) {
	body, err := loadBody(ctx, source)
	if err != nil {
		return nil, err
	}

	parser := subscription.NewParser()
	if !parser.Process(body) {
		return nil, fmt.Errorf("%s: %s", source, parser.Error())
	}

	sub := subscription.NewDownloadable(source)
	expires := parser.Finalize(sub)
	sub.SetHomepage(parser.Homepage())
	now := time.Now().UnixMilli()
	sub.SetLastDownload(now / 1000)
	sub.SetLastSuccess(now / 1000)
	sub.SetDownloadStatus("synchronize_ok")
	sub.SetDownloadCount(sub.DownloadCount() + 1)
	if expires > 0 {
		sub.SetHardExpiration((now + expires) / 1000)
		sub.SetSoftExpiration((now + expires) / 1000)
	}

	for i := 0; i < sub.FilterCount(); i++ {
		metrics.ObserveFilterParsed(sub.FilterAt(i).Type().String())
	}
	return sub, nil
}

// loadConfiguredLists fills storage from the enabled lists in the config.
func loadConfiguredLists(ctx context.Context) (*storage.Storage, error) {
	lists := cfg.EnabledLists()
	if len(lists) == 0 {
		return nil, fmt.Errorf("no enabled filter lists found in config")
	}

	store := storage.New()
	for _, list := range lists {
		sub, err := loadSubscription(ctx, list.URL)
		if err != nil {
			log.Warn("skipping list", zap.String("name", list.Name), zap.Error(err))
			continue
		}
		if list.Name != "" {
			sub.SetTitle(list.Name)
		}
		store.AddSubscription(sub)
	}
	if store.SubscriptionCount() == 0 {
		return nil, fmt.Errorf("no filter list could be loaded")
	}
	return store, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	sub, err := loadSubscription(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Title:           %s\n", sub.Title())
	if sub.Homepage() != "" {
		fmt.Printf("Homepage:        %s\n", sub.Homepage())
	}
	if sub.RequiredVersion() != "" {
		fmt.Printf("RequiredVersion: %s\n", sub.RequiredVersion())
	}
	if sub.DataRevision() != 0 {
		fmt.Printf("Version:         %d\n", sub.DataRevision())
	}

	counts := make(map[filter.Type]int)
	for i := 0; i < sub.FilterCount(); i++ {
		counts[sub.FilterAt(i).Type()]++
	}
	fmt.Printf("Filters:         %d\n", sub.FilterCount())
	for typ := filter.TypeInvalid; typ <= filter.TypeElemHideEmulation; typ++ {
		if counts[typ] > 0 {
			fmt.Printf("  %-18s %d\n", typ.String()+":", counts[typ])
		}
	}

	if verbose {
		for i := 0; i < sub.FilterCount(); i++ {
			if invalid, ok := sub.FilterAt(i).(*filter.InvalidFilter); ok {
				fmt.Printf("  invalid %q: %s\n", invalid.Text(), invalid.Reason())
			}
		}
	}
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	requestURL := args[0]
	docDomain, _ := cmd.Flags().GetString("domain")
	typeName, _ := cmd.Flags().GetString("type")
	thirdParty, _ := cmd.Flags().GetBool("third-party")
	sitekey, _ := cmd.Flags().GetString("sitekey")

	typeMask, ok := filter.ContentTypeByName(typeName)
	if !ok {
		return fmt.Errorf("unknown request type %q", typeName)
	}

	store, err := loadConfiguredLists(cmd.Context())
	if err != nil {
		return err
	}

	decision := "none"
	var matched filter.RegExpFilter
	for i := 0; i < store.SubscriptionCount() && decision != "whitelisted"; i++ {
		sub := store.SubscriptionAt(i)
		if sub.Disabled() {
			continue
		}
		for j := 0; j < sub.FilterCount(); j++ {
			rf, ok := sub.FilterAt(j).(filter.RegExpFilter)
			if !ok || rf.Disabled() {
				continue
			}
			if !rf.Matches(requestURL, typeMask, docDomain, thirdParty, sitekey) {
				continue
			}
			if rf.Type() == filter.TypeWhitelist {
				decision = "whitelisted"
				matched = rf
				break
			}
			if decision == "none" {
				decision = "blocked"
				matched = rf
			}
		}
	}

	metrics.ObserveMatchQuery(decision)
	if matched != nil {
		matched.SetHitCount(matched.HitCount() + 1)
		matched.SetLastHit(uint64(time.Now().UnixMilli()))
		fmt.Printf("%s by %s\n", decision, matched.Text())
	} else {
		fmt.Println("no filter matches")
	}
	return nil
}

func runSelectors(cmd *cobra.Command, args []string) error {
	host := args[0]

	store, err := loadConfiguredLists(cmd.Context())
	if err != nil {
		return err
	}

	index := elemhide.NewIndex()
	for i := 0; i < store.SubscriptionCount(); i++ {
		sub := store.SubscriptionAt(i)
		if sub.Disabled() {
			continue
		}
		for j := 0; j < sub.FilterCount(); j++ {
			if eh, ok := sub.FilterAt(j).(filter.ElemHideBase); ok {
				index.Add(eh)
			}
		}
	}

	metrics.ObserveSelectorQuery()
	for _, sel := range index.UnconditionalSelectors() {
		fmt.Println(sel.Selector)
	}
	for _, sel := range index.SelectorsForDomain(host) {
		fmt.Println(sel.Selector)
	}
	if rules := index.EmulationRulesForDomain(host); len(rules) > 0 && verbose {
		fmt.Println("-- emulation --")
		for _, rule := range rules {
			fmt.Println(rule.Selector())
		}
	}
	return nil
}

func runLists(cmd *cobra.Command, args []string) error {
	fmt.Println("Configured filter lists:")
	for _, list := range cfg.Lists {
		status := "enabled"
		if !list.Enabled {
			status = "disabled"
		}
		fmt.Printf("  [%s] %s\n", status, list.Name)
		fmt.Printf("         %s\n\n", list.URL)
	}
	return nil
}
