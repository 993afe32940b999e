package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/cart"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manage the local cart",
	Long: `Manage the cart kept in the local store. The cart works without signing in.

Examples:
  storefront cart                              # List the cart
  storefront cart add 12                       # Add one of product 12
  storefront cart add 12 --item '{"title":"Espresso beans"}'
  storefront cart remove 12                    # Take one of product 12 out
  storefront cart clear                        # Empty the cart`,
	RunE: runCartList,
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cart",
	RunE:  runCartList,
}

var cartAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add one unit of a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runCartAdd,
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <product-id>",
	Short: "Remove one unit of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateCart(cmd, func(c *cart.Store) error {
			return c.Remove(cmd.Context(), cart.ProductID(args[0]))
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateCart(cmd, func(c *cart.Store) error {
			return c.Clear(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartListCmd, cartAddCmd, cartRemoveCmd, cartClearCmd)

	cartAddCmd.Flags().String("item", "", "product snapshot as JSON, shown in the cart listing")
}

func runCartAdd(cmd *cobra.Command, args []string) error {
	item, _ := cmd.Flags().GetString("item")

	var snapshot json.RawMessage
	if item != "" {
		if !json.Valid([]byte(item)) {
			return usageError("--item must be valid JSON")
		}
		snapshot = json.RawMessage(item)
	}

	return mutateCart(cmd, func(c *cart.Store) error {
		return c.Add(cmd.Context(), cart.ProductID(args[0]), snapshot)
	})
}

// mutateCart applies fn to the persisted cart and prints the result.
func mutateCart(cmd *cobra.Command, fn func(*cart.Store) error) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(a.Cart()); err != nil {
		return err
	}
	return printCart(cmd, a.Cart())
}

func runCartList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return printCart(cmd, a.Cart())
}

func printCart(cmd *cobra.Command, c *cart.Store) error {
	printer := newPrinter(cmd)

	lines := c.Lines()
	if len(lines) == 0 {
		printer.Print("Your cart is empty.")
		return nil
	}

	table := printer.NewTable("ID", "Count", "Item")
	for _, line := range lines {
		table.AddRow(string(line.ProductID), strconv.Itoa(line.Quantity), string(line.Product))
	}
	if err := table.Render(); err != nil {
		return err
	}
	printer.Print("%s", printer.Bold("Items: "+strconv.Itoa(c.ItemCount())))
	return nil
}
