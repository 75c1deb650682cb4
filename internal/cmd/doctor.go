package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/gophercloud/utils/openstack/clientconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/provider/swift"
)

var (
	doctorProvider string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  swiftfs doctor                    # Full environment check
  swiftfs doctor --provider swift   # OpenStack auth environment checks
  swiftfs doctor --provider s3      # AWS credential checks`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorProvider, "provider", "", "Run provider-specific checks (swift|s3)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	identity := GetAppIdentity()
	bannerName := "doctor"
	if identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	observability.CLILogger.Info("=== " + bannerName + " ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 5

	switch doctorProvider {
	case "":
	case "s3", "swift":
		totalChecks = 7
	default:
		return exitError(foundry.ExitInvalidArgument, "Unknown provider",
			fmt.Errorf("%w: %s", ErrUnsupportedProvider, doctorProvider))
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Check 2: Crucible access
	version := crucible.GetVersion()
	if version.Crucible != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
			zap.String("crucible_version", version.Crucible))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 3: Gofulmen access
	if version.Gofulmen != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Check 4: Config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking config directory... ❌ Cannot find config directory", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking config directory... ✅ %s", checkNum, totalChecks, configDir),
			zap.String("config_dir", configDir))
	}
	checkNum++

	// Check 5: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	switch doctorProvider {
	case "s3":
		allChecks = runS3Checks(cmd.Context(), checkNum, totalChecks, allChecks)
	case "swift":
		allChecks = runSwiftChecks(checkNum, totalChecks, allChecks)
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", bannerName))
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
	if !allChecks {
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed", errDoctorFailed)
	}
	return nil
}

var errDoctorFailed = errors.New("one or more checks failed")

// runSwiftChecks verifies the OpenStack auth environment can produce
// Keystone credentials. No request is made to Keystone.
func runSwiftChecks(checkNum, totalChecks int, allChecks bool) bool {
	prefix := swift.DefaultEnvPrefix
	if appConfig != nil && appConfig.Swift.EnvPrefix != "" {
		prefix = appConfig.Swift.EnvPrefix
	}
	return runSwiftChecksWithPrefix(prefix, checkNum, totalChecks, allChecks)
}

func runSwiftChecksWithPrefix(prefix string, checkNum, totalChecks int, allChecks bool) bool {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Swift Provider Checks:")

	authURL := os.Getenv(prefix + "AUTH_URL")
	if authURL == "" {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking auth URL... ❌ %sAUTH_URL is not set", checkNum, totalChecks, prefix))
		printSwiftCredentialsHelp(prefix)
		return false
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking auth URL... ✅ %s", checkNum, totalChecks, authURL),
		zap.String("auth_url", authURL))
	checkNum++

	ao, err := clientconfig.AuthOptions(&clientconfig.ClientOpts{EnvPrefix: prefix})
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking auth options... ❌ Incomplete credentials", checkNum, totalChecks),
			zap.Error(err))
		printSwiftCredentialsHelp(prefix)
		return false
	}

	method := "password"
	user := ao.Username
	if ao.ApplicationCredentialID != "" || ao.ApplicationCredentialName != "" {
		method = "application credential"
		user = ao.ApplicationCredentialID
		if user == "" {
			user = ao.ApplicationCredentialName
		}
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking auth options... ✅ %s", checkNum, totalChecks, method),
		zap.String("auth_method", method),
		zap.String("user", user))

	return allChecks
}

// printSwiftCredentialsHelp prints help for configuring OpenStack credentials.
func printSwiftCredentialsHelp(prefix string) {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure OpenStack credentials:")
	observability.CLILogger.Info("  1. Source the openrc file downloaded from your cloud dashboard, or")
	observability.CLILogger.Info(fmt.Sprintf("  2. Set %sAUTH_URL, %sUSERNAME, %sPASSWORD and %sPROJECT_NAME, or", prefix, prefix, prefix, prefix))
	observability.CLILogger.Info(fmt.Sprintf("  3. Set %sAUTH_URL with %sAPPLICATION_CREDENTIAL_ID and %sAPPLICATION_CREDENTIAL_SECRET", prefix, prefix, prefix))
	observability.CLILogger.Info("")
}

// runS3Checks runs S3-specific diagnostic checks.
func runS3Checks(ctx context.Context, checkNum, totalChecks int, allChecks bool) bool {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("S3 Provider Checks:")

	// Check 6: AWS credentials
	var opts []func(*config.LoadOptions) error
	if appConfig != nil && appConfig.S3.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(appConfig.S3.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	// Mask the access key for display
	maskedKey := maskAccessKey(creds.AccessKeyID)
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", maskedKey),
		zap.String("source", creds.Source))
	checkNum++

	// Check 7: Credential source info
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking credential source... ✅ %s", checkNum, totalChecks, source),
		zap.String("credential_source", source))

	return allChecks
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure AWS credentials:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile, or")
	observability.CLILogger.Info("  3. Use IAM role when running on AWS infrastructure")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("For S3-compatible storage (MinIO, Wasabi, etc.), also set:")
	observability.CLILogger.Info("  - s3.endpoint in the config file or SWIFTFS_S3_ENDPOINT")
	observability.CLILogger.Info("")
}
