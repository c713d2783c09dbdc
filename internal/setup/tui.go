package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/riskwatch/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the generated
// instance registry to instances.gen.yml.
func RunTUI() error {
	var (
		name            string
		market          string
		baseSymbol      string
		baseAddress     string
		baseDecimalsStr string
		basePriceFeed   string
		debounceStr     string
		syncPeriodStr   string
		referenceSymbol string
		confirm         bool
	)

	// defaults
	baseSymbol = "USDC"
	baseDecimalsStr = "6"
	debounceStr = "30s"
	syncPeriodStr = "15s"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's register a lending market to monitor.\n"))

	// instance
	fmt.Println(stepStyle.Render("STEP 1: INSTANCE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Instance Name").
				Description("Unique registry key (e.g. usdc-mainnet)").
				Value(&name).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Market Contract Address").
				Description("0x-prefixed hex address").
				Value(&market).
				Validate(validateAddress),
		),
	).Run()
	if err != nil {
		return err
	}

	// base asset
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: BASE ASSET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base Asset Symbol").
				Value(&baseSymbol),
			huh.NewInput().
				Title("Base Asset Address").
				Value(&baseAddress).
				Validate(validateAddress),
			huh.NewInput().
				Title("Base Asset Decimals").
				Description("e.g. 6 for USDC, 18 for WETH").
				Value(&baseDecimalsStr).
				Validate(validateDecimals),
			huh.NewInput().
				Title("Base Asset Price Feed").
				Value(&basePriceFeed).
				Validate(validateAddress),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Debounce Interval").
				Description("Minimum time between effective syncs (e.g. 30s, 1m)").
				Value(&debounceStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Sync Period").
				Description("Scheduler tick (e.g. 15s)").
				Value(&syncPeriodStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// optional sanity check
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: PRICE SANITY CHECK"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reference Exchange Ticker").
				Description("Binance symbol for base asset cross-check (e.g. ETHUSDT), empty to disable").
				Value(&referenceSymbol),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("RISKWATCH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Instance: %s\nMarket: %s\nBase: %s (%s decimals)\nDebounce: %s\nSync period: %s\n",
		name, market, baseSymbol, baseDecimalsStr, debounceStr, syncPeriodStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	debounce, _ := time.ParseDuration(debounceStr)
	syncPeriod, _ := time.ParseDuration(syncPeriodStr)
	var baseDecimals uint8
	fmt.Sscanf(baseDecimalsStr, "%d", &baseDecimals)

	doc := config.ConfigTmp{
		SyncPeriod: syncPeriod,
		Instances: []config.InstanceTmp{{
			Name:            name,
			Market:          market,
			Debounce:        debounce,
			BaseSymbol:      baseSymbol,
			BaseAddress:     baseAddress,
			BaseDecimals:    baseDecimals,
			BasePriceFeed:   basePriceFeed,
			ReferenceSymbol: referenceSymbol,
		}},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "instances.gen.yml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Registry saved to %s", filename)))
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(s) {
		return fmt.Errorf("must be a 0x-prefixed hex address")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func validateDecimals(s string) error {
	var d uint8
	if _, err := fmt.Sscanf(s, "%d", &d); err != nil {
		return fmt.Errorf("must be an integer 0-255")
	}
	return nil
}
