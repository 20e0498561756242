package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current auth state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/v1/auth/state")
	},
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Print the navigation menu for the current auth state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/v1/nav")
	},
}

var signInCmd = &cobra.Command{
	Use:   "sign-in",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE:  runSignIn,
}

var signOutCmd = &cobra.Command{
	Use:   "sign-out",
	Short: "Sign out the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return postAndPrint(cmd, "/v1/auth/sign-out", nil)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify USER_ID",
	Short: "Mark a user as verified (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(stateCmd, navCmd, signInCmd, signOutCmd, verifyCmd)

	verifyCmd.Flags().Bool("revoke", false, "clear the verified flag instead")

	signInCmd.Flags().StringP("email", "e", "", "account email")
	signInCmd.Flags().StringP("password", "p", "", "account password")
	_ = signInCmd.MarkFlagRequired("email")
	_ = signInCmd.MarkFlagRequired("password")
}

func runSignIn(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	return postAndPrint(cmd, "/v1/auth/sign-in", map[string]string{
		"email":    email,
		"password": password,
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	revoke, _ := cmd.Flags().GetBool("revoke")
	return postAndPrint(cmd, "/v1/admin/users/"+url.PathEscape(args[0])+"/verify", map[string]bool{
		"verified": !revoke,
	})
}

func getAndPrint(cmd *cobra.Command, path string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint(path), nil)
	if err != nil {
		return err
	}
	return doAndPrint(cmd, req)
}

func postAndPrint(cmd *cobra.Command, path string, body any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint(path), r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doAndPrint(cmd, req)
}

func doAndPrint(cmd *cobra.Command, req *http.Request) error {
	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := printJSON(cmd.OutOrStdout(), data); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		// Not JSON, print as is.
		_, err = fmt.Fprintln(w, strings.TrimSpace(string(data)))
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func endpoint(path string) string {
	return strings.TrimRight(serverAddr, "/") + path
}
