package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jornada/internal/access"
	"jornada/internal/clock"
	"jornada/internal/config"
	"jornada/internal/db"
	"jornada/internal/domain"
	"jornada/internal/engine"
	"jornada/internal/migrate"
	"jornada/internal/repo"
	"jornada/internal/report"
	"jornada/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "jornada",
	Short: "Jornada CLI",
	Long: `Jornada tracks workdays and activities per department.
Collaborators open a workday, time activities against the project and
the department's classification catalog, and managers read the
aggregated reports. 'jornada serve' exposes the same operations as an
HTTP API for the portal frontend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return db.Config{Workspace: viper.GetString("workspace")}.EnsureWorkspace()
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
	viper.SetEnvPrefix("JORNADA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "path to jornada.yml (built-in registry when omitted)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("department", "d", "", "department namespace (defaults to the first configured)")
	rootCmd.PersistentFlags().Int64P("collaborator", "c", 0, "collaborator id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("department", rootCmd.PersistentFlags().Lookup("department"))
	_ = viper.BindPFlag("collaborator", rootCmd.PersistentFlags().Lookup("collaborator"))
}

func registerCommands() {
	rootCmd.AddCommand(departmentCmd())
	rootCmd.AddCommand(collaboratorCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(workdayCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- environment helpers ---

type cliEnv struct {
	Registry *config.Config
	Clock    clock.Clock
	Repo     repo.Repo
	Engine   engine.Engine
	Reports  report.Service
}

func loadRegistry() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

func withEnv(ctx context.Context, fn func(context.Context, cliEnv) error) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	clk, err := clock.New(registry.Timezone)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, cliEnv{
		Registry: registry,
		Clock:    clk,
		Repo:     r,
		Engine:   engine.New(conn, clk),
		Reports:  report.NewService(r, clk),
	})
}

// department resolves the --department namespace against the registry
// and ensures the directory row exists.
func (env cliEnv) department(ctx context.Context) (config.DepartmentSchema, domain.Department, error) {
	ns := viper.GetString("department")
	if ns == "" {
		ns = env.Registry.Departments[0].Namespace
	}
	schema, ok := env.Registry.DepartmentByNamespace(ns)
	if !ok {
		return schema, domain.Department{}, fmt.Errorf("unknown department %q", ns)
	}
	dept, err := env.Repo.EnsureDepartment(ctx, schema.Slug, schema.Label)
	return schema, dept, err
}

func (env cliEnv) collaborator(ctx context.Context, dept domain.Department) (domain.Collaborator, error) {
	id := viper.GetInt64("collaborator")
	if id == 0 {
		return domain.Collaborator{}, fmt.Errorf("--collaborator required")
	}
	c, err := env.Repo.GetCollaborator(ctx, id)
	if err != nil {
		return c, err
	}
	if c.DepartmentID != dept.ID {
		return c, fmt.Errorf("collaborator %d is not in department %s", id, dept.Slug)
	}
	return c, nil
}

// --- directory commands ---

func departmentCmd() *cobra.Command {
	dep := &cobra.Command{Use: "department", Short: "Inspect departments"}
	dep.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				if viper.GetBool("json") {
					return printJSON(env.Registry.Departments)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Namespace", "Slug", "Label", "Axes"})
				for _, d := range env.Registry.Departments {
					tw.AppendRow(table.Row{d.Namespace, d.Slug, d.Label, strings.Join(d.AxisLabels(), " / ")})
				}
				tw.Render()
				return nil
			})
		},
	})
	return dep
}

func collaboratorCmd() *cobra.Command {
	col := &cobra.Command{Use: "collaborator", Short: "Manage collaborators"}
	col.AddCommand(collaboratorAddCmd())
	col.AddCommand(collaboratorListCmd())
	return col
}

func collaboratorAddCmd() *cobra.Command {
	var name, email, phone string
	var manager bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a collaborator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c := repo.NewCollaborator(name, dept.ID, env.Clock.Now())
				c.Phone = phone
				c.IsManager = manager
				if email != "" {
					e := strings.ToLower(strings.TrimSpace(email))
					c.Email = &e
				}
				if c.ID, err = env.Repo.InsertCollaborator(ctx, c); err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "e-mail")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().BoolVar(&manager, "manager", false, "grant manager access")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func collaboratorListCmd() *cobra.Command {
	var includeInactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collaborators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				items, err := env.Repo.ListCollaborators(ctx, dept.ID, includeInactive)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "E-mail", "Manager", "Active"})
				for _, c := range items {
					email := ""
					if c.Email != nil {
						email = *c.Email
					}
					tw.AppendRow(table.Row{c.ID, c.Name, email, c.IsManager, c.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&includeInactive, "all", false, "include inactive collaborators")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectAddCmd())
	prj.AddCommand(projectListCmd())
	return prj
}

func projectAddCmd() *cobra.Command {
	var p domain.Project
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				p.DepartmentID = dept.ID
				p.IsActive = true
				if p.ID, err = env.Repo.InsertProject(ctx, p); err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "project name")
	cmd.Flags().StringVar(&p.Code, "code", "", "project code")
	cmd.Flags().StringVar(&p.CostCenter, "cost-center", "", "cost center")
	cmd.Flags().StringVar(&p.Location, "location", "", "location")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	var q string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				items, err := env.Repo.ListProjects(ctx, dept.ID, q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Code", "Cost center", "Location"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Code, p.CostCenter, p.Location})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q, "q", "", "name filter")
	return cmd
}

func catalogCmd() *cobra.Command {
	cat := &cobra.Command{Use: "catalog", Short: "Manage the classification catalog"}
	cat.AddCommand(catalogAddCmd())
	cat.AddCommand(catalogListCmd())
	return cat
}

func catalogAddCmd() *cobra.Command {
	var axis int
	var parent int64
	var name string
	var order int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a catalog node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				schema, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				if axis < 0 || axis >= len(schema.Axes) {
					return fmt.Errorf("department %s has %d axes", schema.Namespace, len(schema.Axes))
				}
				n := domain.CatalogNode{DepartmentID: dept.ID, Axis: axis, Name: name, Order: order, IsActive: true}
				if parent != 0 {
					n.ParentID = &parent
				}
				if n.ID, err = env.Repo.InsertCatalogNode(ctx, n); err != nil {
					return err
				}
				return printJSON(n)
			})
		},
	}
	cmd.Flags().IntVar(&axis, "axis", 0, "zero-based axis")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent node id on the previous axis")
	cmd.Flags().StringVar(&name, "name", "", "node name")
	cmd.Flags().IntVar(&order, "order", 0, "display order")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func catalogListCmd() *cobra.Command {
	var axis int
	var parent int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog nodes of one axis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				var nodes []domain.CatalogNode
				if parent != 0 {
					nodes, err = env.Repo.ListCatalogChildren(ctx, parent)
				} else {
					nodes, err = env.Repo.ListCatalogAxis(ctx, dept.ID, axis)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(nodes)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Axis", "Parent", "Name"})
				for _, n := range nodes {
					parentID := ""
					if n.ParentID != nil {
						parentID = fmt.Sprint(*n.ParentID)
					}
					tw.AppendRow(table.Row{n.ID, n.Axis, parentID, n.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&axis, "axis", 0, "zero-based axis")
	cmd.Flags().Int64Var(&parent, "parent", 0, "list children of this node instead")
	return cmd
}

// --- workday and activity commands ---

func workdayCmd() *cobra.Command {
	wd := &cobra.Command{Use: "workday", Short: "Open and close workdays"}
	wd.AddCommand(workdayActionCmd("start", "Start or reopen the workday", engine.Engine.StartWorkday))
	wd.AddCommand(workdayActionCmd("close", "Close the workday, pausing whatever is running", engine.Engine.CloseWorkday))
	return wd
}

func workdayActionCmd(use, short string, action func(engine.Engine, context.Context, domain.Collaborator, string) (domain.Workday, error)) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c, err := env.collaborator(ctx, dept)
				if err != nil {
					return err
				}
				w, err := action(env.Engine, ctx, c, date)
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "workday date YYYY-MM-DD (today when omitted)")
	return cmd
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{Use: "activity", Short: "Time activities"}
	act.AddCommand(activityAddCmd())
	act.AddCommand(activityActionCmd("start", "Resume a paused activity", engine.Engine.StartActivity))
	act.AddCommand(activityActionCmd("pause", "Pause a running activity", engine.Engine.PauseActivity))
	act.AddCommand(activityActionCmd("finish", "Finish an activity for good", engine.Engine.FinishActivity))
	act.AddCommand(activityListCmd())
	return act
}

func activityAddCmd() *cobra.Command {
	var date, description string
	var projectID int64
	var nodes []int64
	var adHoc []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an activity and start timing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(nodes) > domain.MaxAxes || len(adHoc) > domain.MaxAxes {
				return fmt.Errorf("at most %d axes", domain.MaxAxes)
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c, err := env.collaborator(ctx, dept)
				if err != nil {
					return err
				}
				var class domain.Classification
				copy(class.NodeIDs[:], nodes)
				copy(class.AdHoc[:], adHoc)
				a, err := env.Engine.CreateActivity(ctx, c, engine.ActivityCreateOptions{
					Date:        date,
					ProjectID:   projectID,
					Class:       class,
					Description: description,
				})
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "workday date YYYY-MM-DD (today when omitted)")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().Int64SliceVar(&nodes, "node", nil, "catalog node id per axis (repeatable, positional)")
	cmd.Flags().StringArrayVar(&adHoc, "adhoc", nil, "ad-hoc text per axis (repeatable, positional)")
	cmd.Flags().StringVar(&description, "description", "", "free description")
	return cmd
}

func activityActionCmd(use, short string, action func(engine.Engine, context.Context, domain.Collaborator, int64) (domain.Activity, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid activity id %q", args[0])
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c, err := env.collaborator(ctx, dept)
				if err != nil {
					return err
				}
				a, err := action(env.Engine, ctx, c, id)
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	return cmd
}

func activityListCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the day board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c, err := env.collaborator(ctx, dept)
				if err != nil {
					return err
				}
				board, err := env.Engine.DashboardSnapshot(ctx, c, date)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				open := "closed"
				if board.Workday == nil {
					open = "not started"
				} else if board.Workday.IsOpen {
					open = "open"
				}
				fmt.Printf("%s — workday %s — %d activities (%d active, %d paused, %d done)\n",
					board.Date, open, board.Stats.Total, board.Stats.Active, board.Stats.Paused, board.Stats.Done)
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "State", "Description", "Time"})
				for _, a := range board.Activities {
					tw.AppendRow(table.Row{a.Activity.ID, a.State, a.Activity.Description, report.FormatHMS(a.Seconds)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD (today when omitted)")
	return cmd
}

// --- reports ---

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Aggregated time reports"}
	rep.AddCommand(reportCollaboratorCmd())
	rep.AddCommand(reportDepartmentCmd())
	rep.AddCommand(reportRealtimeCmd())
	rep.AddCommand(reportExportCmd())
	return rep
}

func reportFlags(cmd *cobra.Command, opts *report.Options) {
	cmd.Flags().StringVar(&opts.From, "from", "", "period start YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "period end YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.Order, "order", "", "row order: -hours, hours, name, project")
	cmd.Flags().Int64SliceVar(&opts.ProjectIDs, "project", nil, "filter by project id (repeatable)")
}

func reportCollaboratorCmd() *cobra.Command {
	var opts report.Options
	cmd := &cobra.Command{
		Use:   "collaborator",
		Short: "One collaborator's period report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				schema, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				c, err := env.collaborator(ctx, dept)
				if err != nil {
					return err
				}
				rep, err := env.Reports.Collaborator(ctx, schema, c, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("%s — %s to %s — total %s (%.2fh)\n", c.Name, rep.From, rep.To, rep.TotalHMS, rep.TotalHours)
				renderRows(schema, nil, rep.Rows)
				return nil
			})
		},
	}
	reportFlags(cmd, &opts)
	return cmd
}

func reportDepartmentCmd() *cobra.Command {
	var opts report.Options
	cmd := &cobra.Command{
		Use:   "department",
		Short: "Whole-department period report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				schema, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				rep, err := env.Reports.Department(ctx, schema, dept, nil, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("%s — %s to %s — total %s across %d collaborators (avg %.2fh)\n",
					dept.Name, rep.From, rep.To, rep.TotalHMS, rep.KPIs.Collaborators, rep.KPIs.AvgHoursPerHead)
				renderRows(schema, rep.Rows, nil)
				return nil
			})
		},
	}
	reportFlags(cmd, &opts)
	return cmd
}

// renderRows prints either department rows (with collaborator) or
// collaborator rows, sharing the axis columns from the schema.
func renderRows(schema config.DepartmentSchema, deptRows, collabRows []report.ActivityRow) {
	tw := newTable()
	header := table.Row{"Date"}
	withCollab := deptRows != nil
	if withCollab {
		header = append(header, "Collaborator")
	}
	header = append(header, "Project")
	for _, label := range schema.AxisLabels() {
		header = append(header, label)
	}
	header = append(header, "Description", "Time")
	tw.AppendHeader(header)
	rows := deptRows
	if !withCollab {
		rows = collabRows
	}
	for _, r := range rows {
		row := table.Row{r.Date}
		if withCollab {
			row = append(row, r.Collaborator)
		}
		row = append(row, r.Project)
		for _, v := range r.Axes {
			row = append(row, v)
		}
		row = append(row, r.Description, r.HMS)
		tw.AppendRow(row)
	}
	tw.Render()
}

func reportRealtimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Who is timing what right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				schema, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				board, err := env.Reports.Realtime(ctx, schema, dept)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Collaborator", "Project", "Description", "Time"})
				for _, e := range board.Entries {
					tw.AppendRow(table.Row{e.Collaborator, e.Project, e.Description, e.HMS})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportExportCmd() *cobra.Command {
	var opts report.Options
	var out string
	var wholeDept bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the report as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				schema, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				if wholeDept {
					rep, err := env.Reports.Department(ctx, schema, dept, nil, opts)
					if err != nil {
						return err
					}
					f, err := report.DepartmentWorkbook(schema, rep)
					if err != nil {
						return err
					}
					if out == "" {
						out = report.DepartmentFilename(env.Clock)
					}
					if err := f.SaveAs(out); err != nil {
						return err
					}
				} else {
					c, err := env.collaborator(ctx, dept)
					if err != nil {
						return err
					}
					rep, err := env.Reports.Collaborator(ctx, schema, c, opts)
					if err != nil {
						return err
					}
					f, err := report.CollaboratorWorkbook(schema, rep)
					if err != nil {
						return err
					}
					if out == "" {
						out = report.CollaboratorFilename(env.Clock, c.ID)
					}
					if err := f.SaveAs(out); err != nil {
						return err
					}
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	reportFlags(cmd, &opts)
	cmd.Flags().StringVar(&out, "out", "", "output path (generated name when omitted)")
	cmd.Flags().BoolVar(&wholeDept, "all", false, "export the whole department instead of one collaborator")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Audit event log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				_, dept, err := env.department(ctx)
				if err != nil {
					return err
				}
				items, err := env.Repo.LatestEvents(ctx, n, dept.ID, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "User"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.TS, e.Type, e.EntityKind + " " + e.EntityID, e.UserID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	log.AddCommand(tail)
	return log
}

// seed ensures the configured departments exist in the directory so the
// API can resolve them before anyone touches the CLI.
func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create directory rows for every configured department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				for _, schema := range env.Registry.Departments {
					dept, err := env.Repo.EnsureDepartment(ctx, schema.Slug, schema.Label)
					if err != nil {
						return err
					}
					fmt.Printf("department %s (id %d)\n", dept.Slug, dept.ID)
				}
				return nil
			})
		},
	}
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := db.Config{Workspace: viper.GetString("workspace")}
			conn, err := db.Open(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("schema up to date:", cfg.Path())
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env cliEnv) error {
				if addr == "" {
					addr = env.Registry.Server.Addr
				}
				if basePath == "" {
					basePath = env.Registry.Server.BasePath
				}
				secret := env.Registry.Server.JWTSecret
				if s := os.Getenv("JORNADA_JWT_SECRET"); s != "" {
					secret = s
				}
				if secret == "" {
					return fmt.Errorf("JWT secret required: set server.jwt_secret or JORNADA_JWT_SECRET")
				}
				logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
				handler, err := server.New(server.Config{
					Engine:   env.Engine,
					Reports:  env.Reports,
					Gate:     access.New(env.Repo, env.Clock),
					Registry: env.Registry,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret, Logger: logger},
					Logger:   logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving jornada api")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (config server.addr when omitted)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (config server.base_path when omitted)")
	return cmd
}

// --- output helpers ---

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
