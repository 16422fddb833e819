package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// hardwarePackages maps an adapter to the package holding its integration test.
var hardwarePackages = map[string]string{
	"periph":  "./i2c/...",
	"mcp2221": "./adapter/...",
}

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests, including the simulator backed driver and cli tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run the hardware session against a Si7021 attached through the given adapter",
		Long: `Runs the integration-tagged tests of the adapter package. The session reads
the serial number, measures, cycles every resolution and toggles the heater,
then restores both registers.

Examples:
  dev integration-test --adapter mcp2221
  dev integration-test --adapter periph --bus /dev/i2c-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := cmd.Flags().GetString("adapter")
			if err != nil {
				return fmt.Errorf("could not get adapter flag: %w", err)
			}
			bus, err := cmd.Flags().GetString("bus")
			if err != nil {
				return fmt.Errorf("could not get bus flag: %w", err)
			}
			goArgs, env, err := integrationArgs(adapter, bus)
			if err != nil {
				return err
			}
			slog.Info("running hardware tests", "adapter", adapter, "args", goArgs)
			goTest := exec.CommandContext(cmd.Context(), "go", goArgs...)
			goTest.Env = append(os.Environ(), env...)
			goTest.Stdout = os.Stdout
			goTest.Stderr = os.Stderr
			if err := goTest.Run(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("adapter", "mcp2221", "adapter the sensor is attached to: mcp2221 or periph")
	cmd.Flags().String("bus", "", "periph bus name, empty for the first available")
	return cmd
}

func integrationArgs(adapter, bus string) ([]string, []string, error) {
	pkg, ok := hardwarePackages[adapter]
	if !ok {
		return nil, nil, fmt.Errorf("no hardware tests for adapter %q", adapter)
	}
	args := []string{"test", "-tags", "integration", "-count=1", "-v", "-run", "Hardware", pkg}
	env := []string{"SI7021_ADAPTER=" + adapter, "SI7021_BUS=" + bus}
	return args, env, nil
}
