package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/engine"
	"trackline/internal/migrate"
	"trackline/internal/notifier"
	"trackline/internal/repo"
	"trackline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Trackline CLI",
	Long: `Trackline is a small issue tracker for teams.
- Workspace: your .trackline directory holding the database.
- Accounts: identified by email; everyone acting on a project needs one.
- Projects: own issue groups, issues, participants, and an event log.
- Roles: owner > admin > member > spectator; what you can do depends on your role.
- Invitations: admins invite accounts by email; the invitee accepts with a token.
- Issue groups: columns like "todo" or "done"; moving an issue into a final
  group marks it completed.
- Event log: diary of changes, view with 'tl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRACKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("account", "", "acting account email")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides workspace default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace with a default trackline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			} else if !os.IsNotExist(err) {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

// --- accounts ---

func accountCmd() *cobra.Command {
	acc := &cobra.Command{Use: "account", Short: "Manage accounts"}
	acc.AddCommand(accountCreateCmd())
	acc.AddCommand(accountShowCmd())
	return acc
}

func accountCreateCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAccount(ctx, engine.AccountCreateOptions{
					Name:     name,
					Email:    email,
					Password: password,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func accountShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <email>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAccount(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

// --- projects ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var name, description, beginsAt, finishesAt string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			owner, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					Name:        name,
					Description: description,
					BeginsAt:    optionalString(beginsAt),
					FinishesAt:  optionalString(finishesAt),
					OwnerEmail:  owner,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&beginsAt, "begins-at", "", "RFC3339 start date")
	cmd.Flags().StringVar(&finishesAt, "finishes-at", "", "RFC3339 end date")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects you participate in",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requesterEmail()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjectsForAccount(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Begins", "Finishes"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, deref(p.BeginsAt), deref(p.FinishesAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, description, beginsAt, finishesAt string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			email, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProjectUpdateOptions{
					ProjectID:      projectID,
					RequesterEmail: email,
				}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("begins-at") {
					opts.BeginsAt = &beginsAt
				}
				if cmd.Flags().Changed("finishes-at") {
					opts.FinishesAt = &finishesAt
				}
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&beginsAt, "begins-at", "", "RFC3339 start date")
	cmd.Flags().StringVar(&finishesAt, "finishes-at", "", "RFC3339 end date")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			email, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				_, err := e.DeleteProject(ctx, projectID, email)
				return err
			})
		},
	}
	return cmd
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "TRACKLINE_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set TRACKLINE_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
	return cmd
}

// --- invitations ---

func inviteCmd() *cobra.Command {
	inv := &cobra.Command{Use: "invite", Short: "Manage invitations"}
	inv.AddCommand(inviteSendCmd())
	inv.AddCommand(inviteListCmd())
	inv.AddCommand(inviteAcceptCmd())
	inv.AddCommand(inviteRevokeCmd())
	return inv
}

func inviteSendCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Invite an account to the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || role == "" {
				return fmt.Errorf("--email and --role required")
			}
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.InviteAccount(ctx, engine.InviteOptions{
					ProjectID:    projectID,
					InviterEmail: requester,
					InviteeEmail: email,
					RoleName:     role,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "invitee email")
	cmd.Flags().StringVar(&role, "role", "", "role (admin, member, spectator)")
	return cmd
}

func inviteListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending invitations",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListInvitations(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Email", "Role", "Token", "Created"})
				for _, inv := range items {
					tw.AppendRow(table.Row{inv.AccountEmail, inv.Role, inv.Token, inv.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func inviteAcceptCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept an invitation by token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AcceptInvitation(ctx, token)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "invitation token")
	return cmd
}

func inviteRevokeCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a pending invitation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email required")
			}
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeInvitation(ctx, engine.RevokeInvitationOptions{
					ProjectID:      projectID,
					RequesterEmail: requester,
					TargetEmail:    email,
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "invitee email")
	return cmd
}

// --- participants ---

func participantCmd() *cobra.Command {
	part := &cobra.Command{Use: "participant", Short: "Manage participants"}
	part.AddCommand(participantListCmd())
	part.AddCommand(participantKickCmd())
	part.AddCommand(participantRoleCmd())
	return part
}

func participantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListParticipants(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Email", "Role", "Joined"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.AccountEmail, p.Role, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func participantKickCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "kick",
		Short: "Kick a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email required")
			}
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.KickParticipant(ctx, engine.KickOptions{
					ProjectID:      projectID,
					RequesterEmail: requester,
					TargetEmail:    email,
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "participant email")
	return cmd
}

func participantRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Update a participant's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || role == "" {
				return fmt.Errorf("--email and --role required")
			}
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.UpdateParticipantRole(ctx, engine.RoleUpdateOptions{
					ProjectID:      projectID,
					RequesterEmail: requester,
					TargetEmail:    email,
					RoleName:       role,
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "participant email")
	cmd.Flags().StringVar(&role, "role", "", "new role (admin, member, spectator)")
	return cmd
}

// --- issue groups ---

func groupCmd() *cobra.Command {
	grp := &cobra.Command{Use: "group", Short: "Manage issue groups"}
	grp.AddCommand(groupCreateCmd())
	grp.AddCommand(groupListCmd())
	grp.AddCommand(groupDeleteCmd())
	return grp
}

func groupCreateCmd() *cobra.Command {
	var title string
	var isFinal bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.CreateIssueGroup(ctx, engine.IssueGroupCreateOptions{
					ProjectID:      projectID,
					Title:          title,
					IsFinal:        isFinal,
					RequesterEmail: requester,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(g)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "group title")
	cmd.Flags().BoolVar(&isFinal, "final", false, "issues moved here count as completed")
	return cmd
}

func groupListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issue groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListIssueGroups(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Final"})
				for _, g := range items {
					tw.AppendRow(table.Row{g.ID, g.Title, g.IsFinal})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func groupDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteIssueGroup(ctx, args[0], requester)
			})
		},
	}
	return cmd
}

// --- issues ---

func issueCmd() *cobra.Command {
	iss := &cobra.Command{Use: "issue", Short: "Manage issues"}
	iss.AddCommand(issueCreateCmd())
	iss.AddCommand(issueListCmd())
	iss.AddCommand(issueUpdateCmd())
	iss.AddCommand(issueDeleteCmd())
	iss.AddCommand(issueMoveCmd())
	iss.AddCommand(issueAssignCmd())
	return iss
}

func issueCreateCmd() *cobra.Command {
	var groupID, title, description, expiresAt string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if groupID == "" || title == "" {
				return fmt.Errorf("--group and --title required")
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.CreateIssue(ctx, engine.IssueCreateOptions{
					IssueGroupID:   groupID,
					Title:          title,
					Description:    description,
					ExpiresAt:      optionalString(expiresAt),
					RequesterEmail: requester,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "issue group id")
	cmd.Flags().StringVar(&title, "title", "", "issue title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "RFC3339 deadline")
	return cmd
}

func issueListCmd() *cobra.Command {
	var groupID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues in a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if groupID == "" {
				return fmt.Errorf("--group required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListIssues(ctx, groupID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Completed", "Assignee", "Expires"})
				for _, i := range items {
					tw.AppendRow(table.Row{i.ID, i.Title, i.Completed, deref(i.AssignedToAccountEmail), deref(i.ExpiresAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "issue group id")
	return cmd
}

func issueUpdateCmd() *cobra.Command {
	var title, description, expiresAt string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.IssueUpdateOptions{
					IssueID:        args[0],
					RequesterEmail: requester,
				}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("expires-at") {
					opts.ExpiresAt = &expiresAt
				}
				i, err := e.UpdateIssue(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "issue title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "RFC3339 deadline")
	return cmd
}

func issueDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteIssue(ctx, args[0], requester)
			})
		},
	}
	return cmd
}

func issueMoveCmd() *cobra.Command {
	var groupID string
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move an issue to another group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if groupID == "" {
				return fmt.Errorf("--group required")
			}
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.MoveIssue(ctx, engine.IssueMoveOptions{
					IssueID:        args[0],
					IssueGroupID:   groupID,
					RequesterEmail: requester,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "destination group id")
	return cmd
}

func issueAssignCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign or unassign an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := requesterEmail()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var assignee *string
				if email != "" {
					assignee = &email
				}
				i, err := e.AssignIssue(ctx, engine.IssueAssignOptions{
					IssueID:        args[0],
					AssigneeEmail:  assignee,
					RequesterEmail: requester,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "assignee email (empty to unassign)")
	return cmd
}

// --- event log ---

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := requireProjectID()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListEvents(ctx, projectID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Account"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.AccountEmail})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn)

			if cmd.Flags().Changed("addr") {
				cfg.Server.Listen = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			secret := cfg.Server.JWTSecret
			if secret == "" {
				secret = os.Getenv("TRACKLINE_JWT_SECRET")
			}
			if secret == "" && !cfg.Server.AllowHeaderEmail {
				return fmt.Errorf("a JWT secret is required; set server.jwt_secret or TRACKLINE_JWT_SECRET")
			}

			dispatcher := notifier.NewDispatcher()
			defer dispatcher.Close()
			if cfg.Notifications.Enabled && cfg.Notifications.Email != nil {
				email, err := notifier.NewEmailNotifier(*cfg.Notifications.Email)
				if err != nil {
					return err
				}
				dispatcher.Register(email)
			}

			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:              secret,
					AllowLegacyEmailHeader: cfg.Server.AllowHeaderEmail,
				},
				Notify:   dispatcher,
				Webhooks: cfg.Webhooks,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Listen, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Trackline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Listen, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func requesterEmail() (string, error) {
	email := strings.TrimSpace(viper.GetString("account"))
	if email == "" {
		return "", fmt.Errorf("account not specified; use --account or set TRACKLINE_ACCOUNT")
	}
	return email, nil
}

func requireProjectID() (string, error) {
	projectID := strings.TrimSpace(viper.GetString("project"))
	if projectID == "" {
		return "", fmt.Errorf("project not specified; use --project or set TRACKLINE_PROJECT (tl project use <id>)")
	}
	return projectID, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
