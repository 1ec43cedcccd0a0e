// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"github.com/spf13/cobra"

	"github.com/desktopshell/trustcore/pkg/gateway"
)

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Invoke and inspect registered outbound API operations",
	}

	cmd.AddCommand(newAPIInvokeCmd())
	cmd.AddCommand(newAPIDescribeCmd())
	cmd.AddCommand(newAPIListCmd())

	return cmd
}

func newAPIInvokeCmd() *cobra.Command {
	var (
		params        []string
		headers       []string
		correlationID string
	)

	cmd := &cobra.Command{
		Use:   "invoke <operation-id>",
		Short: "Invoke a registered operation",
		Long: `Invoke runs one operation from the closed registry. Parameters fill the
operation's URL placeholders; unused parameters of GET operations pass
through as query parameters. Caller headers must use the x- prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paramValues, err := parseKeyValues(params, "param")
			if err != nil {
				return err
			}
			headerValues, err := parseKeyValues(headers, "header")
			if err != nil {
				return err
			}

			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			req := gateway.InvokeRequest{
				OperationID:   args[0],
				Headers:       headerValues,
				CorrelationID: correlationID,
			}
			if len(paramValues) > 0 {
				req.Params = make(map[string]any, len(paramValues))
				for key, value := range paramValues {
					req.Params[key] = value
				}
			}

			return printResult(svc.gateway.Invoke(cmd.Context(), req))
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil,
		"Operation parameter as key=value, repeatable")
	cmd.Flags().StringArrayVar(&headers, "header", nil,
		"Extra request header as key=value, must use the x- prefix, repeatable")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "",
		"Correlation id to stamp on the request, generated when empty")

	return cmd
}

func newAPIDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <operation-id>",
		Short: "Show an operation's configuration shape",
		Long: `Describe reports an operation's method, URL template, placeholders, claim
map, auth mode and limits without performing any network traffic. Secret
values are never included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			return printResult(svc.gateway.Describe(args[0]))
		},
	}
}

func newAPIListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered operation ids",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			defer svc.close()

			ids := svc.gateway.Registry().IDs()
			return printSuccess(map[string]any{
				"operations": ids,
				"count":      len(ids),
			})
		},
	}
}
