package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mockwebhook",
		Short: "Send signed processor webhooks to a local CourseFox instance",
	}
	rootCmd.AddCommand(chargeCmd())
	rootCmd.AddCommand(signCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type chargeOptions struct {
	url       string
	secret    string
	event     string
	reference string
	courseID  uint
	buyerID   uint
	amount    int64
	currency  string
	email     string
	tamper    bool
	dryRun    bool
}

func chargeCmd() *cobra.Command {
	var o chargeOptions
	cmd := &cobra.Command{
		Use:   "charge",
		Short: "Build, sign and POST a charge event",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildEvent(o)
			if err != nil {
				return err
			}
			secret, err := resolveSecret(o.secret)
			if err != nil {
				return err
			}
			signature := security.NewHMACSHA512Signer().Sign(body, []byte(secret))
			if o.tamper {
				body = append(body, ' ')
			}
			if o.dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n%s\n", paystack.SignatureHeader, signature, body)
				return nil
			}
			return post(cmd.OutOrStdout(), o.url, body, signature)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.url, "url", "http://localhost:4000/webhooks/paystack", "webhook endpoint")
	f.StringVar(&o.secret, "secret", "", "processor secret key (defaults to MOCK_PAYSTACK_SECRET)")
	f.StringVar(&o.event, "event", paystack.EventChargeSuccess, "event name")
	f.StringVar(&o.reference, "reference", "", "transaction reference")
	f.UintVar(&o.courseID, "course", 0, "course id placed in metadata")
	f.UintVar(&o.buyerID, "buyer", 0, "buyer id placed in metadata")
	f.Int64Var(&o.amount, "amount", 0, "amount in minor units")
	f.StringVar(&o.currency, "currency", "NGN", "currency code")
	f.StringVar(&o.email, "email", "buyer@example.com", "customer email")
	f.BoolVar(&o.tamper, "tamper", false, "modify the body after signing")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the signed request instead of sending it")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the signature header value for a raw body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			var err error
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), security.NewHMACSHA512Signer().Sign(body, []byte(key)))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "processor secret key (defaults to MOCK_PAYSTACK_SECRET)")
	return cmd
}

func resolveSecret(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := env.GetEnv("MOCK_PAYSTACK_SECRET", ""); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no secret: pass --secret or set MOCK_PAYSTACK_SECRET")
}

func buildEvent(o chargeOptions) ([]byte, error) {
	metadata, err := json.Marshal(paystack.Metadata{
		CourseID: paystack.ID(o.courseID),
		BuyerID:  paystack.ID(o.buyerID),
	})
	if err != nil {
		return nil, err
	}
	data := paystack.EventData{
		ID:        time.Now().UnixNano() % 1_000_000_000,
		Reference: o.reference,
		Status:    paystack.StatusSuccess,
		Amount:    o.amount,
		Currency:  o.currency,
		Metadata:  metadata,
	}
	data.Customer.Email = o.email
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paystack.Event{Event: o.event, Data: raw})
}

func post(out io.Writer, url string, body []byte, signature string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(paystack.SignatureHeader, signature)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(out, "%s\n%s\n", resp.Status, respBody)
	return nil
}
