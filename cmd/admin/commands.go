package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// connectFunc yields the orchestrator and a cleanup func
type connectFunc func(ctx context.Context) (ports.PaymentService, func(), error)

type cli struct {
	connect connectFunc
	timeout time.Duration
}

func newRootCommand(connect connectFunc) *cobra.Command {
	c := &cli{connect: connect}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operator tools for course payments",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", time.Minute, "overall deadline for the command")

	root.AddCommand(
		c.reconcileCommand(),
		c.refundCommand(),
		c.setStatusCommand(),
		c.listCommand(),
		c.analyticsCommand(),
		tokenCommand(),
	)
	return root
}

// run connects, applies the deadline and prints fn's result as JSON
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, svc ports.PaymentService) (interface{}, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	svc, cleanup, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) reconcileCommand() *cobra.Command {
	var reference, transactionID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Verify a payment against the gateway and apply the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc ports.PaymentService) (interface{}, error) {
				return svc.Verify(ctx, ports.VerifyRequest{TransactionID: transactionID, Reference: reference})
			})
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "transaction reference (tx_ref)")
	cmd.Flags().StringVar(&transactionID, "transaction-id", "", "gateway transaction id")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("transaction-id")
	return cmd
}

func (c *cli) refundCommand() *cobra.Command {
	var paymentID, reason string
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund the full amount of a completed payment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, svc ports.PaymentService) (interface{}, error) {
				return svc.RequestRefund(ctx, ports.RefundPaymentRequest{
					Requester: domain.SystemIdentity,
					PaymentID: paymentID,
					Reason:    reason,
				})
			})
		},
	}
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "payment id")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the refund")
	_ = cmd.MarkFlagRequired("payment-id")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) setStatusCommand() *cobra.Command {
	var paymentID, status string
	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Apply a manual status correction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := domain.ParsePaymentStatus(status)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, svc ports.PaymentService) (interface{}, error) {
				return svc.UpdatePaymentStatus(ctx, ports.UpdateStatusRequest{
					Actor:     domain.SystemIdentity,
					PaymentID: paymentID,
					Status:    target,
				})
			})
		},
	}
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "payment id")
	cmd.Flags().StringVar(&status, "status", "", "PENDING, COMPLETED, FAILED, CANCELLED or REFUNDED")
	_ = cmd.MarkFlagRequired("payment-id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func (c *cli) listCommand() *cobra.Command {
	var status, courseID, instructorID, learnerID string
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payments by status, course, instructor or learner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := 0
			for _, v := range []string{status, courseID, instructorID, learnerID} {
				if v != "" {
					set++
				}
			}
			if set != 1 {
				return fmt.Errorf("exactly one of --status, --course-id, --instructor-id or --learner-id is required")
			}

			return c.run(cmd, func(ctx context.Context, svc ports.PaymentService) (interface{}, error) {
				switch {
				case status != "":
					parsed, err := domain.ParsePaymentStatus(status)
					if err != nil {
						return nil, err
					}
					return svc.ListByStatus(ctx, parsed)
				case courseID != "":
					return svc.ListByCourse(ctx, courseID)
				case instructorID != "":
					return svc.ListByInstructor(ctx, instructorID)
				default:
					return svc.ListByPayer(ctx, learnerID, domain.PageRequest{Page: page, Size: size})
				}
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "payment status")
	cmd.Flags().StringVar(&courseID, "course-id", "", "course id")
	cmd.Flags().StringVar(&instructorID, "instructor-id", "", "instructor id")
	cmd.Flags().StringVar(&learnerID, "learner-id", "", "learner id")
	cmd.Flags().IntVar(&page, "page", 0, "page for --learner-id listings")
	cmd.Flags().IntVar(&size, "size", domain.DefaultPageSize, "page size for --learner-id listings")
	return cmd
}

func (c *cli) analyticsCommand() *cobra.Command {
	var courseID, instructorID string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Revenue and status breakdown for a course or an instructor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (courseID == "") == (instructorID == "") {
				return fmt.Errorf("exactly one of --course-id or --instructor-id is required")
			}
			return c.run(cmd, func(ctx context.Context, svc ports.PaymentService) (interface{}, error) {
				if courseID != "" {
					return svc.CourseAnalytics(ctx, courseID)
				}
				return svc.InstructorEarnings(ctx, instructorID)
			})
		},
	}
	cmd.Flags().StringVar(&courseID, "course-id", "", "course id")
	cmd.Flags().StringVar(&instructorID, "instructor-id", "", "instructor id")
	return cmd
}

// tokenCommand mints a bearer token signed with JWT_SECRET, for calling
// the HTTP API from scripts
func tokenCommand() *cobra.Command {
	var identity domain.Identity
	var role, issuer string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity.Role = domain.Role(role)
			switch identity.Role {
			case domain.RoleStudent, domain.RoleInstructor, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			manager, err := auth.NewJWTManager(os.Getenv("JWT_SECRET"), issuer, ttl)
			if err != nil {
				return err
			}
			token, err := manager.GenerateToken(identity)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&identity.ID, "user-id", "", "user id")
	cmd.Flags().StringVar(&identity.Email, "email", "", "user email")
	cmd.Flags().StringVar(&identity.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "STUDENT, INSTRUCTOR or ADMIN")
	cmd.Flags().StringVar(&issuer, "issuer", "course-platform", "token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
