package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tytonet/tyto/internal/config"
	"github.com/tytonet/tyto/internal/log"
	"github.com/tytonet/tyto/plugins/dissector/tpncp"
)

var (
	fieldsSchemaPath string
	fieldsLayouts    bool
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Dump the TPNCP driver table catalog",
	Long: `Load a tpncp.dat driver table and list the event and command messages
it defines. With --layouts every message also lists its field layout:
name, wire width, role and the minimum header version that carries it.

Examples:
  tyto fields                          # table named by the config
  tyto fields -s /path/tpncp.dat --layouts`,
	Run: func(cmd *cobra.Command, args []string) {
		runFields()
	},
}

func init() {
	fieldsCmd.Flags().StringVarP(&fieldsSchemaPath, "schema", "s", "",
		"driver table path (config value when empty)")
	fieldsCmd.Flags().BoolVar(&fieldsLayouts, "layouts", false,
		"list the field layout of every message")
	rootCmd.AddCommand(fieldsCmd)
}

func runFields() {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("failed to load config", err)
	}
	log.Init(&cfg.Log)

	path := fieldsSchemaPath
	if path == "" {
		path = cfg.TPNCP.SchemaPath
	}
	schema, err := tpncp.LoadSchema(path)
	if err != nil {
		exitWithError("failed to load driver table", err)
	}

	fmt.Printf("Driver table %s", path)
	if n := schema.Skipped(); n > 0 {
		fmt.Printf(" (%d malformed rows skipped)", n)
	}
	fmt.Println()

	printCatalog("Events", schema.Events)
	printCatalog("Commands", schema.Commands)
}

func printCatalog(title string, c tpncp.Catalog) {
	ids := c.IDs()
	fmt.Printf("\n%s: %d\n", title, len(ids))
	for _, id := range ids {
		name, _ := c.Name(id)
		if name == "" {
			name = "(unnamed)"
		}
		fields := c.Fields(id)
		fmt.Printf("%7d  %-44s %d fields\n", id, name, len(fields))
		if !fieldsLayouts {
			continue
		}
		for _, f := range fields {
			fmt.Printf("         %-36s %s\n", f.Name, fieldSpec(f))
		}
	}
}

// fieldSpec renders the wire shape of one layout entry.
func fieldSpec(f tpncp.Field) string {
	spec := fmt.Sprintf("%d bit", f.Size)
	if f.Size > 1 {
		spec += "s"
	}
	if f.ArrayDim > 1 {
		spec = fmt.Sprintf("%d x %s", f.ArrayDim, spec)
	}
	if !f.Unsigned {
		spec += ", signed"
	}
	if f.Role != tpncp.RoleNone {
		spec += ", " + f.Role.String()
	}
	if f.Since > 0 {
		spec += fmt.Sprintf(", since v%d", f.Since)
	}
	if len(f.Enum) > 0 {
		spec += fmt.Sprintf(", enum(%d)", len(f.Enum))
	}
	return spec
}
