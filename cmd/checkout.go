package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"storefront/checkout"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Choose an address, order the cart and get the payment link",
	Long: `Check out the cart. Every checkout command requires a signed-in session.

Examples:
  storefront checkout addresses                       # List shipping addresses
  storefront checkout add-address --country Iran --state Tehran \
    --city Tehran --street "Valiasr 12" --postal-code 1234567890
  storefront checkout order --address 3               # Order and print the payment link`,
}

var checkoutAddressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List shipping addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		addresses, err := a.Checkout().LoadAddresses(cmd.Context())
		if err != nil {
			return err
		}
		return addressTable(newPrinter(cmd), addresses)
	},
}

var checkoutAddAddressCmd = &cobra.Command{
	Use:   "add-address",
	Short: "Add a shipping address",
	Args:  cobra.NoArgs,
	RunE:  runAddAddress,
}

var checkoutOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Order the cart and print the payment link",
	Args:  cobra.NoArgs,
	RunE:  runOrder,
}

func init() {
	rootCmd.AddCommand(checkoutCmd)
	checkoutCmd.AddCommand(checkoutAddressesCmd, checkoutAddAddressCmd, checkoutOrderCmd)

	checkoutAddAddressCmd.Flags().String("country", "", "country")
	checkoutAddAddressCmd.Flags().String("state", "", "state or province")
	checkoutAddAddressCmd.Flags().String("city", "", "city")
	checkoutAddAddressCmd.Flags().String("street", "", "street and number")
	checkoutAddAddressCmd.Flags().String("postal-code", "", "postal code")
	checkoutAddAddressCmd.Flags().Bool("default", false, "make this the default address")

	checkoutOrderCmd.Flags().StringP("address", "a", "", "shipping address id")
	checkoutOrderCmd.Flags().Bool("no-pay", false, "create the order without requesting a payment link")
}

func runAddAddress(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var form checkout.AddressForm
	form.Country, _ = flags.GetString("country")
	form.State, _ = flags.GetString("state")
	form.City, _ = flags.GetString("city")
	form.Street, _ = flags.GetString("street")
	form.PostalCode, _ = flags.GetString("postal-code")
	form.IsDefault, _ = flags.GetBool("default")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.Checkout().AddAddress(cmd.Context(), form)
	if err != nil {
		return err
	}
	newPrinter(cmd).Success("Address %d added.", created.ID)
	return nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	address, _ := cmd.Flags().GetString("address")
	noPay, _ := cmd.Flags().GetBool("no-pay")
	printer := newPrinter(cmd)

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.Checkout()
	if _, err := orch.LoadAddresses(cmd.Context()); err != nil {
		return err
	}
	if address == "" {
		address = defaultAddress(orch.Addresses())
	}
	orch.SelectAddress(address)

	invoice, err := orch.SubmitOrder(cmd.Context())
	if err != nil {
		return err
	}
	printer.Success("Order created. Transaction %s", invoice.TransactionID)

	if noPay {
		return nil
	}
	url, err := orch.RequestPaymentURL(cmd.Context(), invoice)
	if err != nil {
		return err
	}
	printer.Print("Pay at: %s", printer.Bold(url))
	return nil
}

// defaultAddress picks the default address, or the only one there is.
func defaultAddress(addresses []checkout.Address) string {
	for _, addr := range addresses {
		if addr.IsDefault {
			return strconv.Itoa(addr.ID)
		}
	}
	if len(addresses) == 1 {
		return strconv.Itoa(addresses[0].ID)
	}
	return ""
}
