package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/smallbiznis/talentbay/internal/config"
	"github.com/smallbiznis/talentbay/internal/routeguard"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Validate and print the route policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := withFlags(config.Load())

		policy, v, err := routeguard.LoadPolicy(cfg.Guard.PolicyPath)
		if err != nil {
			return err
		}
		compiled, err := policy.Compile()
		if err != nil {
			return err
		}

		source := "built-in defaults"
		if v != nil {
			source = v.ConfigFileUsed()
		}
		pterm.Info.Printfln("route policy from %s", source)

		if err := pterm.DefaultTable.WithHasHeader().WithData(routeRows(compiled)).Render(); err != nil {
			return err
		}
		pterm.Println()
		if err := pterm.DefaultTable.WithHasHeader().WithData(homeRows(compiled.Policy)).Render(); err != nil {
			return err
		}
		pterm.Success.Println("route policy is valid")
		return nil
	},
}

func routeRows(compiled *routeguard.Compiled) pterm.TableData {
	rows := pterm.TableData{{"Prefix", "Requirement"}}
	for _, r := range compiled.Table.Routes() {
		rows = append(rows, []string{r.Prefix, r.Requirement.String()})
	}
	rows = append(rows, []string{"(fallback)", compiled.Table.Fallback().String()})
	return rows
}

func homeRows(p routeguard.Policy) pterm.TableData {
	roles := make([]string, 0, len(p.RoleHomePaths))
	for role := range p.RoleHomePaths {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	rows := pterm.TableData{{"Destination", "Path"}}
	rows = append(rows,
		[]string{"sign in", p.SignInPath},
		[]string{"incomplete profile", p.IncompleteProfilePath},
	)
	for _, role := range roles {
		rows = append(rows, []string{fmt.Sprintf("%s home", role), p.RoleHomePaths[role]})
	}
	return rows
}
