package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mnyxls/internal/core"

	"gopkg.in/yaml.v3"
)

// Sheet types a worksheet may declare.
const (
	SheetAccounts              = "accounts"
	SheetCategories            = "categories"
	SheetCategoriesNaked       = "categories:naked"
	SheetCategoriesSinglePayee = "categories:singlepayee"
	SheetTxns                  = "txns"
	SheetTxnsPivot             = "txns:pivot"
)

var (
	SheetTypes        = []string{SheetAccounts, SheetCategories, SheetCategoriesNaked, SheetCategoriesSinglePayee, SheetTxns, SheetTxnsPivot}
	ConsolidateValues = []string{"yyyymm"}
)

type Config struct {
	// File is the path the configuration was loaded from, if any.
	File string `yaml:"-"`

	// Inputs and outputs
	Reports     []string `yaml:"reports"`
	DataDir     string   `yaml:"data_dir"`
	XLSFile     string   `yaml:"xls_file"`
	XLSTemplate string   `yaml:"xls_template"`
	DBFile      string   `yaml:"db_file"`

	// Import filters
	ImportDateFrom string `yaml:"import_date_from"`
	ImportDateTo   string `yaml:"import_date_to"`
	CheckTotals    *bool  `yaml:"check_totals"`

	// Account overrides
	AccountCategories            map[string]StringList    `yaml:"account_categories"`
	AccountClassificationDefault string                   `yaml:"account_classification_default"`
	Accounts                     map[string]AccountConfig `yaml:"accounts"`

	// Category overrides
	CategoryTypeDefault  string                `yaml:"category_type_default"`
	CategoryClassDefault string                `yaml:"category_class_default"`
	CategoryTypes        map[string]StringList `yaml:"category_types"`
	CategoryClasses      map[string]StringList `yaml:"category_classes"`

	Eras     Eras      `yaml:"eras"`
	Rewrites []Rewrite `yaml:"rewrites"`
	Workbook Workbook  `yaml:"workbook"`

	// Environment only
	Google    GoogleConfig `yaml:"-"`
	AMQP      AMQPConfig   `yaml:"-"`
	LogLevel  string       `yaml:"-"`
	LogFormat string       `yaml:"-"`
	Workers   int          `yaml:"-"`
}

type AccountConfig struct {
	Category   string `yaml:"category"`
	OpenedDate string `yaml:"opened_date"`
	ClosedDate string `yaml:"closed_date"`
}

// Rewrite edits the imported transactions its select matches. Empty Payee
// and Category leave those fields alone; a Memo of "" clears the memo.
type Rewrite struct {
	Select   Select  `yaml:"select"`
	Payee    string  `yaml:"payee"`
	Category string  `yaml:"category"`
	Memo     *string `yaml:"memo"`
	TxnDate  string  `yaml:"txndate"`
}

// OpenEnded as an era date_to leaves the era open towards the future.
const OpenEnded = "..."

type Era struct {
	Name     string `yaml:"-"`
	DateFrom string `yaml:"date_from"`
	DateTo   string `yaml:"date_to"`
}

type Workbook struct {
	Autofit     *bool      `yaml:"autofit"`
	SkipEmpty   *bool      `yaml:"skipempty"`
	UseExisting *bool      `yaml:"use_existing"`
	Select      Select     `yaml:"select"`
	Worksheets  Worksheets `yaml:"worksheets"`
}

type Worksheet struct {
	Name        string     `yaml:"-"`
	SheetType   string     `yaml:"sheet_type"`
	Select      Select     `yaml:"select"`
	Foreach     string     `yaml:"foreach"`
	Options     Options    `yaml:"options"`
	Columns     StringList `yaml:"columns"`
	Consolidate string     `yaml:"consolidate"`
	UseExisting *bool      `yaml:"use_existing"`
	SkipEmpty   *bool      `yaml:"skipempty"`
	Autofit     *bool      `yaml:"autofit"`
}

type Options struct {
	Rows    StringList `yaml:"rows"`
	Columns StringList `yaml:"columns"`
}

// Select maps a criterion name to its values.
type Select map[string]StringList

type GoogleConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
}

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Load reads the YAML file at path and applies environment overrides. An
// empty path yields the defaults plus the environment.
// Overrides run after the environment is applied and before paths are
// resolved.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &core.ConfigurationError{File: path, Msg: err.Error()}
		}
		cfg.File = path
	}
	cfg.applyEnv()
	for _, o := range overrides {
		o(cfg)
	}
	cfg.applyDefaults()
	cfg.resolvePaths()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("MNYXLS_DATA_DIR", c.DataDir)
	c.XLSFile = getEnv("MNYXLS_XLS_FILE", c.XLSFile)
	c.DBFile = getEnv("MNYXLS_DB_FILE", c.DBFile)
	c.LogLevel = getEnv("MNYXLS_LOG_LEVEL", "")
	c.LogFormat = getEnv("MNYXLS_LOG_FORMAT", "text")
	c.Workers = getEnvInt("MNYXLS_WORKERS", 4)

	c.Google = GoogleConfig{
		SpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		CredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		CredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}
	c.AMQP = AMQPConfig{
		URL:        getEnv("MNYXLS_AMQP_URL", ""),
		Exchange:   getEnv("MNYXLS_AMQP_EXCHANGE", "mnyxls"),
		RoutingKey: getEnv("MNYXLS_AMQP_ROUTING_KEY", "runs"),
	}
}

func (c *Config) applyDefaults() {
	if c.CategoryTypeDefault == "" {
		c.CategoryTypeDefault = string(core.TxnTypeExpense)
	}
	if c.CategoryClassDefault == "" {
		c.CategoryClassDefault = string(core.TxnClassDiscretionary)
	}
	if len(c.Workbook.Worksheets) == 0 {
		c.Workbook.Worksheets = DefaultWorksheets()
	}
}

// resolvePaths makes data_dir relative to the config file and every other
// path relative to data_dir.
func (c *Config) resolvePaths() {
	base := "."
	if c.File != "" {
		base = filepath.Dir(c.File)
	}
	if c.DataDir == "" {
		c.DataDir = base
	} else if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(base, c.DataDir)
	}
	for i, r := range c.Reports {
		c.Reports[i] = c.ResolvePath(r)
	}
	c.XLSFile = c.ResolvePath(c.XLSFile)
	c.XLSTemplate = c.ResolvePath(c.XLSTemplate)
	c.DBFile = c.ResolvePath(c.DBFile)
}

// ResolvePath returns p relative to the data directory unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// DefaultWorksheets is the workbook used when none is configured.
func DefaultWorksheets() Worksheets {
	return Worksheets{
		{Name: "Accounts", SheetType: SheetAccounts},
		{Name: "Transactions", SheetType: SheetTxns, Foreach: "txntype"},
		{
			Name:      "Category by year",
			SheetType: SheetTxnsPivot,
			Options:   Options{Rows: StringList{"category", "subcategory"}, Columns: StringList{"yyyy"}},
		},
	}
}

// ImportDateRange returns the parsed import filters. Zero dates are open.
func (c *Config) ImportDateRange() (from, to core.Date, err error) {
	if c.ImportDateFrom != "" {
		if from, err = core.ParsePartialDate(c.ImportDateFrom, false); err != nil {
			return from, to, &core.ConfigurationError{File: c.File, Directive: "import_date_from", Msg: err.Error()}
		}
	}
	if c.ImportDateTo != "" {
		if to, err = core.ParsePartialDate(c.ImportDateTo, true); err != nil {
			return from, to, &core.ConfigurationError{File: c.File, Directive: "import_date_to", Msg: err.Error()}
		}
	}
	return from, to, nil
}

// ShouldCheckTotals defaults to true.
func (c *Config) ShouldCheckTotals() bool {
	return c.CheckTotals == nil || *c.CheckTotals
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if len(c.Reports) == 0 {
		errs = append(errs, "reports: at least one report file is required")
	}

	from, to, err := c.ImportDateRange()
	if err != nil {
		errs = append(errs, err.Error())
	} else if !from.IsZero() && !to.IsZero() && to.Before(from) {
		errs = append(errs, fmt.Sprintf("import_date_to %s is before import_date_from %s", to, from))
	}

	if _, ok := core.ParseTxnType(c.CategoryTypeDefault); !ok {
		errs = append(errs, fmt.Sprintf("invalid category_type_default '%s'", c.CategoryTypeDefault))
	}
	for typ := range c.CategoryTypes {
		if _, ok := core.ParseTxnType(typ); !ok {
			errs = append(errs, fmt.Sprintf("invalid category_types key '%s'", typ))
		}
	}

	errs = append(errs, duplicateCategories("category_types", c.CategoryTypes)...)
	errs = append(errs, duplicateCategories("category_classes", c.CategoryClasses)...)

	if c.AccountClassificationDefault != "" {
		if _, ok := core.ParseClassification(c.AccountClassificationDefault); !ok {
			errs = append(errs, fmt.Sprintf("invalid account_classification_default '%s': must be Assets or Liabilities", c.AccountClassificationDefault))
		}
	}

	seenCategory := map[string]string{}
	for _, class := range sortedKeys(c.AccountCategories) {
		if _, ok := core.ParseClassification(class); !ok {
			errs = append(errs, fmt.Sprintf("invalid account_categories key '%s': must be Assets or Liabilities", class))
			continue
		}
		for _, cat := range c.AccountCategories[class] {
			if prev, dup := seenCategory[core.NormalizeName(cat)]; dup && prev != class {
				errs = append(errs, fmt.Sprintf("account_categories: '%s' is listed under both %s and %s", cat, prev, class))
			}
			seenCategory[core.NormalizeName(cat)] = class
		}
	}

	for _, name := range sortedKeys(c.Accounts) {
		acct := c.Accounts[name]
		for directive, value := range map[string]string{"opened_date": acct.OpenedDate, "closed_date": acct.ClosedDate} {
			if value == "" {
				continue
			}
			if _, err := core.ParseISODate(value); err != nil {
				errs = append(errs, fmt.Sprintf("accounts.%s.%s: %v", name, directive, err))
			}
		}
	}

	for i, era := range c.Eras {
		if i == 0 && era.DateFrom == "" && (era.DateTo == "" || era.DateTo == OpenEnded) {
			errs = append(errs, fmt.Sprintf("eras.%s: date_from or date_to is required", era.Name))
		}
		if era.DateFrom != "" {
			if _, err := core.ParsePartialDate(era.DateFrom, false); err != nil {
				errs = append(errs, fmt.Sprintf("eras.%s.date_from: %v", era.Name, err))
			}
		}
		if era.DateTo != "" && era.DateTo != OpenEnded {
			if _, err := core.ParsePartialDate(era.DateTo, true); err != nil {
				errs = append(errs, fmt.Sprintf("eras.%s.date_to: %v", era.Name, err))
			}
		}
	}

	for i, rw := range c.Rewrites {
		if rw.Select == nil {
			errs = append(errs, fmt.Sprintf("rewrites.%d.select: a select directive is required", i))
		}
		if rw.Payee == "" && rw.Category == "" && rw.Memo == nil && rw.TxnDate == "" {
			errs = append(errs, fmt.Sprintf("rewrites.%d: at least one of payee, category, memo or txndate is required", i))
		}
		if rw.TxnDate != "" {
			if _, err := core.ParsePartialDate(rw.TxnDate, false); err != nil {
				errs = append(errs, fmt.Sprintf("rewrites.%d.txndate: %v", i, err))
			}
		}
	}

	for _, ws := range c.Workbook.Worksheets {
		if !slices.Contains(SheetTypes, ws.SheetType) {
			errs = append(errs, fmt.Sprintf("workbook.worksheets.%s.sheet_type: invalid sheet type '%s': must be one of %v", ws.Name, ws.SheetType, SheetTypes))
		}
		if ws.Consolidate != "" && !slices.Contains(ConsolidateValues, ws.Consolidate) {
			errs = append(errs, fmt.Sprintf("workbook.worksheets.%s.consolidate: invalid value '%s': must be one of %v", ws.Name, ws.Consolidate, ConsolidateValues))
		}
		if ws.Consolidate != "" && ws.SheetType != SheetTxns {
			errs = append(errs, fmt.Sprintf("workbook.worksheets.%s.consolidate: only valid for sheet type '%s'", ws.Name, SheetTxns))
		}
	}

	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when MNYXLS_AMQP_URL is provided")
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("invalid worker count %d: must be at least 1", c.Workers))
	}

	if len(errs) > 0 {
		return &core.ConfigurationError{
			File: c.File,
			Msg:  fmt.Sprintf("configuration validation failed:\n- %s", strings.Join(errs, "\n- ")),
		}
	}
	return nil
}

// duplicateCategories reports "Cat" or "Cat:Sub" entries assigned to more
// than one value of directive.
func duplicateCategories(directive string, m map[string]StringList) []string {
	var errs []string
	seen := map[core.CategoryKey]string{}
	for _, value := range sortedKeys(m) {
		for _, pair := range m[value] {
			key := core.SplitCategoryPair(pair)
			if prev, dup := seen[key]; dup && prev != value {
				errs = append(errs, fmt.Sprintf("%s: '%s' is listed under both %s and %s", directive, key, prev, value))
			}
			seen[key] = value
		}
	}
	return errs
}

// StringList accepts a scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = StringList{}
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a scalar value", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a value or a list of values", value.Line)
}

// Worksheets keeps declaration order.
type Worksheets []Worksheet

func (w *Worksheets) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: worksheets must be a mapping of sheet name to definition", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var ws Worksheet
		if err := value.Content[i+1].Decode(&ws); err != nil {
			return fmt.Errorf("worksheet '%s': %w", value.Content[i].Value, err)
		}
		ws.Name = value.Content[i].Value
		*w = append(*w, ws)
	}
	return nil
}

// Eras keeps declaration order; the first matching era wins.
type Eras []Era

func (e *Eras) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.New("eras must be a mapping of era name to date range")
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var era Era
		if err := value.Content[i+1].Decode(&era); err != nil {
			return fmt.Errorf("era '%s': %w", value.Content[i].Value, err)
		}
		era.Name = value.Content[i].Value
		*e = append(*e, era)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
