package cli

import (
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Shoonya and persist the session",
		Long: `Authenticates using the stored credentials and TOTP secret, then
saves the session token to disk. Shoonya tokens stay valid for the
trading day, so later commands reuse the saved session instead of
logging in again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Broker.IsAuthenticated() {
				if output.IsJSON() {
					return output.JSON(map[string]bool{"authenticated": true, "cached": true})
				}
				output.Success("Already logged in (session restored from disk)")
				return nil
			}

			if err := app.Broker.Login(cmd.Context()); err != nil {
				output.Error("Login failed: %v", err)
				return err
			}
			if err := app.Broker.SaveSession(app.SessionPath()); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to persist session")
			}

			if output.IsJSON() {
				return output.JSON(map[string]bool{"authenticated": true, "cached": false})
			}
			output.Success("Login successful, session saved")
			return nil
		},
	}
}
