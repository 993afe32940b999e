package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/checkout"
	"storefront/output"
	"storefront/session"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the session and account",
	Long: `Show the session phase. When signed in, also show the profile, the
shipping addresses and the order history.

Examples:
  storefront whoami`,
	RunE: runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	printer := newPrinter(cmd)

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	state := a.Session().State()
	printer.Print("Session: %s", printer.PhaseBadge(string(state.Phase)))
	if state.Phase != session.PhaseAuthenticated {
		printer.Print("%s", printer.Dim("Run 'storefront login' to sign in."))
		return nil
	}

	profile, err := a.Checkout().Profile(cmd.Context())
	if err != nil {
		return err
	}

	printer.Header("Account")
	printer.Print("Phone: %s", profile.User.PhoneNumber)
	if name := fullName(profile.User); name != "" {
		printer.Print("Name:  %s", name)
	}
	if profile.User.Email != "" {
		printer.Print("Email: %s", profile.User.Email)
	}

	printer.Header("Addresses")
	if err := addressTable(printer, profile.Addresses); err != nil {
		return err
	}

	printer.Header("Orders")
	if len(profile.Orders) == 0 {
		printer.Print("No orders yet.")
		return nil
	}
	table := printer.NewTable("ID", "Items", "Total", "Paid")
	for _, o := range profile.Orders {
		total := "-"
		if o.TotalPrice != nil {
			total = strconv.FormatInt(*o.TotalPrice, 10)
		}
		quantity := 0
		for _, item := range o.Items {
			quantity += item.Quantity
		}
		table.AddRow(strconv.Itoa(o.ID), strconv.Itoa(quantity), total, strconv.FormatBool(o.Completed))
	}
	return table.Render()
}

func fullName(u session.UserInfo) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	default:
		return u.FirstName + u.LastName
	}
}

func addressTable(printer *output.Printer, addresses []checkout.Address) error {
	if len(addresses) == 0 {
		printer.Print("No addresses. Add one with 'storefront checkout add-address'.")
		return nil
	}
	table := printer.NewTable("ID", "Address", "Postal Code", "Default")
	for _, addr := range addresses {
		line := fmt.Sprintf("%s, %s, %s, %s", addr.Street, addr.City, addr.State, addr.Country)
		def := ""
		if addr.IsDefault {
			def = "*"
		}
		table.AddRow(strconv.Itoa(addr.ID), line, addr.PostalCode, def)
	}
	return table.Render()
}
