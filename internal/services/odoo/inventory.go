package odoo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Serialised units live in Odoo as stock.lot records named by IMEI. The shop
// status and marketplace sale fields are custom x_ fields on the lot.
const lotModel = "stock.lot"

var lotFields = []string{
	"name", "product_id", "x_stock_status", "x_selling_price", "x_cost_price",
	"x_sold_channel", "x_sold_reference", "write_date",
}

// Lot is a stock.lot as read over XML-RPC.
type Lot struct {
	ID            int64               `json:"id"`
	Name          models.OdooString   `json:"name"`
	Product       models.OdooMany2One `json:"product_id"`
	StockStatus   models.OdooString   `json:"x_stock_status"`
	SellingPrice  float64             `json:"x_selling_price"`
	CostPrice     float64             `json:"x_cost_price"`
	SoldChannel   models.OdooString   `json:"x_sold_channel"`
	SoldReference models.OdooString   `json:"x_sold_reference"`
	WriteDate     models.OdooString   `json:"write_date"`
}

func (l Lot) expected() opname.ExpectedUnit {
	return opname.ExpectedUnit{
		UnitID:       strconv.FormatInt(l.ID, 10),
		IMEI:         l.Name.String(),
		ProductLabel: l.Product.Name,
		SellingPrice: decimal.NewFromFloat(l.SellingPrice).Round(2),
		CostPrice:    decimal.NewFromFloat(l.CostPrice).Round(2),
		StockStatus:  l.StockStatus.String(),
	}
}

// Inventory is the inventory collaborator backed by Odoo.
type Inventory struct {
	client              *Client
	unregisteredProduct int64
	log                 logrus.FieldLogger
}

func NewInventory(client *Client, unregisteredProduct int64, log logrus.FieldLogger) *Inventory {
	return &Inventory{
		client:              client,
		unregisteredProduct: unregisteredProduct,
		log:                 log.WithField("module", "odoo"),
	}
}

var _ inventory.Collaborator = (*Inventory)(nil)

func inStockDomain() []interface{} {
	statuses := make([]interface{}, 0, len(models.InStockStatuses))
	for _, st := range models.InStockStatuses {
		statuses = append(statuses, string(st))
	}
	return []interface{}{
		[]interface{}{"x_stock_status", "in", statuses},
	}
}

func (i *Inventory) ExpectedUnits(ctx context.Context) ([]opname.ExpectedUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var lots []Lot
	if err := i.client.SearchRead(lotModel, inStockDomain(), lotFields, 0, 0, &lots); err != nil {
		return nil, fmt.Errorf("load expected lots: %w", err)
	}
	out := make([]opname.ExpectedUnit, 0, len(lots))
	for _, l := range lots {
		out = append(out, l.expected())
	}
	return out, nil
}

func (i *Inventory) Apply(ctx context.Context, m opname.Mutation) error {
	status, ok := inventory.StatusFor(m.Kind)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	values := map[string]interface{}{"x_stock_status": string(status)}
	if m.Kind == opname.MutationMarkSold {
		values["x_sold_channel"] = m.Channel
		values["x_sold_reference"] = m.SoldReferenceID
	}

	id, err := i.lotID(m)
	if err != nil {
		return err
	}
	if id == 0 {
		if m.Kind != opname.MutationCreateUnit && m.Kind != opname.MutationFlagReturn {
			return fmt.Errorf("%w: lot %s", inventory.ErrUnitNotFound, m.IMEI)
		}
		return i.createLot(m, values)
	}

	if err := i.client.Write(lotModel, []int64{id}, values); err != nil {
		return fmt.Errorf("update lot %s: %w", m.IMEI, err)
	}
	i.log.WithFields(logrus.Fields{"lot": id, "imei": m.IMEI, "status": status}).Info("lot status updated")
	return nil
}

// lotID finds the lot of m: by id for snapshot units, by IMEI otherwise.
// Zero means no such lot.
func (i *Inventory) lotID(m opname.Mutation) (int64, error) {
	if id, err := strconv.ParseInt(m.UnitID, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	ids, err := i.client.Search(lotModel, []interface{}{[]interface{}{"name", "=", m.IMEI}}, 1)
	if err != nil {
		return 0, fmt.Errorf("find lot %s: %w", m.IMEI, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

var errNoUnregisteredProduct = errors.New("odoo: ODOO_UNREGISTERED_PRODUCT_ID not configured")

func (i *Inventory) createLot(m opname.Mutation, values map[string]interface{}) error {
	if i.unregisteredProduct == 0 {
		return errNoUnregisteredProduct
	}
	values["name"] = m.IMEI
	values["product_id"] = i.unregisteredProduct
	values["note"] = inventory.UnregisteredLabel(m.IMEI)
	if m.Notes != "" {
		values["note"] = inventory.UnregisteredLabel(m.IMEI) + ": " + m.Notes
	}

	id, err := i.client.Create(lotModel, values)
	if err != nil {
		return fmt.Errorf("create lot %s: %w", m.IMEI, err)
	}
	i.log.WithFields(logrus.Fields{"lot": id, "imei": m.IMEI}).Info("lot created from unregistered scan")
	return nil
}
