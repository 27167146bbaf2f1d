package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"autoservice/internal/models"

	"github.com/hashicorp/go-memdb"
	"github.com/shopspring/decimal"
)

// Table names double as entity names in not-found errors
const (
	tblCustomer    = "customer"
	tblVehicle     = "vehicle"
	tblMaster      = "master"
	tblService     = "service"
	tblPart        = "part"
	tblMovement    = "stock movement"
	tblOrder       = "order"
	tblServiceItem = "service item"
	tblPartItem    = "part item"
	tblPayment     = "payment"
	tblPhoto       = "photo"
	tblOrderEvent  = "order event"
	tblProcessed   = "processed event"
)

// int64Index indexes an int64 (or *int64) field big-endian, so scans run in
// ascending id order. A nil pointer leaves the row out of the index.
type int64Index struct {
	Field string
}

func (x *int64Index) FromObject(obj interface{}) (bool, []byte, error) {
	v := reflect.Indirect(reflect.ValueOf(obj)).FieldByName(x.Field)
	if !v.IsValid() {
		return false, nil, fmt.Errorf("field %q not found", x.Field)
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false, nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Int64 {
		return false, nil, fmt.Errorf("field %q is %s, want int64", x.Field, v.Kind())
	}
	return true, encodeID(v.Int()), nil
}

func (x *int64Index) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	id, ok := args[0].(int64)
	if !ok {
		return nil, fmt.Errorf("argument must be an int64: %#v", args[0])
	}
	return encodeID(id), nil
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: "id", Unique: true, Indexer: &int64Index{Field: "ID"}}
}

func refIndex(name, field string, optional bool) *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: name, AllowMissing: optional, Indexer: &int64Index{Field: field}}
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	t := &memdb.TableSchema{Name: name, Indexes: map[string]*memdb.IndexSchema{}}
	for _, idx := range indexes {
		t.Indexes[idx.Name] = idx
	}
	return t
}

func memorySchema() *memdb.DBSchema {
	tables := []*memdb.TableSchema{
		table(tblCustomer, idIndex()),
		table(tblVehicle, idIndex(), refIndex("customer", "CustomerID", false)),
		table(tblMaster, idIndex()),
		table(tblService, idIndex()),
		table(tblPart, idIndex(), &memdb.IndexSchema{
			Name: "article", Unique: true, AllowMissing: true,
			Indexer: &memdb.StringFieldIndex{Field: "Article"},
		}),
		table(tblMovement, idIndex(),
			refIndex("part", "PartID", false),
			refIndex("order", "OrderID", true),
			refIndex("part_item", "PartItemID", true)),
		table(tblOrder, idIndex(),
			refIndex("customer", "CustomerID", false),
			refIndex("vehicle", "VehicleID", false),
			refIndex("master", "MasterID", true)),
		table(tblServiceItem, idIndex(), refIndex("order", "OrderID", false), refIndex("service", "ServiceID", false)),
		table(tblPartItem, idIndex(), refIndex("order", "OrderID", false), refIndex("part", "PartID", false)),
		table(tblPayment, idIndex(), refIndex("order", "OrderID", false)),
		table(tblPhoto, idIndex(), refIndex("order", "OrderID", false)),
		table(tblOrderEvent, idIndex(), refIndex("order", "OrderID", false)),
		table(tblProcessed, &memdb.IndexSchema{
			Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "EventID"},
		}),
	}

	schema := &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{}}
	for _, t := range tables {
		schema.Tables[t.Name] = t
	}
	return schema
}

// MemoryStore keeps all records in a go-memdb database. It applies the same
// constraints as the postgres schema: cascades, protected catalog entries
// and the non-negative stock check.
type MemoryStore struct {
	*memQueries
}

// memQueries runs each call in its own memdb transaction, or in txn when
// handed out by InTx
type memQueries struct {
	db  *memdb.MemDB
	ids *atomic.Int64
	txn *memdb.Txn
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		panic(fmt.Sprintf("invalid memory schema: %v", err))
	}
	return &MemoryStore{memQueries: &memQueries{db: db, ids: &atomic.Int64{}}}
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// InTx runs fn in one write transaction. memdb admits a single writer, so
// transactions are serialized and LockOrder needs no extra locking.
func (s *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(&memQueries{db: s.db, ids: s.ids, txn: txn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (q *memQueries) write(fn func(txn *memdb.Txn) error) error {
	if q.txn != nil {
		return fn(q.txn)
	}
	txn := q.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (q *memQueries) read(fn func(txn *memdb.Txn) error) error {
	if q.txn != nil {
		return fn(q.txn)
	}
	return fn(q.db.Txn(false))
}

func (q *memQueries) nextID() int64 {
	return q.ids.Add(1)
}

func missing(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// fetch returns a copy of the row, so callers never mutate indexed objects
func fetch[T any](txn *memdb.Txn, tbl string, id int64) (*T, error) {
	raw, err := txn.First(tbl, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, missing(tbl, id)
	}
	row := *raw.(*T)
	return &row, nil
}

func exists(txn *memdb.Txn, tbl string, id int64) error {
	raw, err := txn.First(tbl, "id", id)
	if err != nil {
		return err
	}
	if raw == nil {
		return missing(tbl, id)
	}
	return nil
}

// collect copies every row of index matching args; no args scans the index
func collect[T any](txn *memdb.Txn, tbl, index string, args ...interface{}) ([]T, error) {
	it, err := txn.Get(tbl, index, args...)
	if err != nil {
		return nil, err
	}
	var rows []T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, *raw.(*T))
	}
	return rows, nil
}

func put[T any](txn *memdb.Txn, tbl string, row T) error {
	if err := txn.Insert(tbl, &row); err != nil {
		return fmt.Errorf("failed to write %s: %w", tbl, err)
	}
	return nil
}

func remove(txn *memdb.Txn, tbl, index string, id int64) error {
	if _, err := txn.DeleteAll(tbl, index, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", tbl, err)
	}
	return nil
}

func reversed[T any](rows []T) []T {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

// Customers

func (q *memQueries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return q.write(func(txn *memdb.Txn) error {
		c.ID = q.nextID()
		c.CreatedAt = time.Now()
		return put(txn, tblCustomer, *c)
	})
}

func (q *memQueries) GetCustomer(ctx context.Context, id int64) (c *models.Customer, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		c, err = fetch[models.Customer](txn, tblCustomer, id)
		return err
	})
	return c, err
}

func (q *memQueries) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Customer](txn, tblCustomer, c.ID)
		if err != nil {
			return err
		}
		c.CreatedAt = old.CreatedAt
		return put(txn, tblCustomer, *c)
	})
}

// DeleteCustomer cascades to vehicles and orders
func (q *memQueries) DeleteCustomer(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblCustomer, id); err != nil {
			return err
		}
		vehicles, err := collect[models.Vehicle](txn, tblVehicle, "customer", id)
		if err != nil {
			return err
		}
		for _, v := range vehicles {
			if err := deleteVehicle(txn, v.ID); err != nil {
				return err
			}
		}
		orders, err := collect[models.Order](txn, tblOrder, "customer", id)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := deleteOrder(txn, o.ID); err != nil {
				return err
			}
		}
		return remove(txn, tblCustomer, "id", id)
	})
}

func (q *memQueries) ListCustomers(ctx context.Context) (rows []models.Customer, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Customer](txn, tblCustomer, "id")
		return err
	})
	return rows, err
}

// Vehicles

func (q *memQueries) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblCustomer, v.CustomerID); err != nil {
			return err
		}
		v.ID = q.nextID()
		v.CreatedAt = time.Now()
		return put(txn, tblVehicle, *v)
	})
}

func (q *memQueries) GetVehicle(ctx context.Context, id int64) (v *models.Vehicle, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		v, err = fetch[models.Vehicle](txn, tblVehicle, id)
		return err
	})
	return v, err
}

func (q *memQueries) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Vehicle](txn, tblVehicle, v.ID)
		if err != nil {
			return err
		}
		if err := exists(txn, tblCustomer, v.CustomerID); err != nil {
			return err
		}
		v.CreatedAt = old.CreatedAt
		return put(txn, tblVehicle, *v)
	})
}

func (q *memQueries) DeleteVehicle(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblVehicle, id); err != nil {
			return err
		}
		return deleteVehicle(txn, id)
	})
}

func deleteVehicle(txn *memdb.Txn, id int64) error {
	orders, err := collect[models.Order](txn, tblOrder, "vehicle", id)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if err := deleteOrder(txn, o.ID); err != nil {
			return err
		}
	}
	return remove(txn, tblVehicle, "id", id)
}

func (q *memQueries) ListVehiclesByCustomer(ctx context.Context, customerID int64) (rows []models.Vehicle, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Vehicle](txn, tblVehicle, "customer", customerID)
		return err
	})
	return rows, err
}

// Masters

func (q *memQueries) CreateMaster(ctx context.Context, m *models.Master) error {
	return q.write(func(txn *memdb.Txn) error {
		m.ID = q.nextID()
		m.CreatedAt = time.Now()
		return put(txn, tblMaster, *m)
	})
}

func (q *memQueries) GetMaster(ctx context.Context, id int64) (m *models.Master, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		m, err = fetch[models.Master](txn, tblMaster, id)
		return err
	})
	return m, err
}

func (q *memQueries) UpdateMaster(ctx context.Context, m *models.Master) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Master](txn, tblMaster, m.ID)
		if err != nil {
			return err
		}
		m.CreatedAt = old.CreatedAt
		return put(txn, tblMaster, *m)
	})
}

// DeleteMaster keeps the master's orders with master_id cleared
func (q *memQueries) DeleteMaster(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblMaster, id); err != nil {
			return err
		}
		orders, err := collect[models.Order](txn, tblOrder, "master", id)
		if err != nil {
			return err
		}
		for _, o := range orders {
			o.MasterID = nil
			if err := put(txn, tblOrder, o); err != nil {
				return err
			}
		}
		return remove(txn, tblMaster, "id", id)
	})
}

func (q *memQueries) ListMasters(ctx context.Context) (rows []models.Master, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Master](txn, tblMaster, "id")
		return err
	})
	return rows, err
}

func (q *memQueries) MasterWorkload(ctx context.Context) (workload []models.MasterWorkload, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		masters, err := collect[models.Master](txn, tblMaster, "id")
		if err != nil {
			return err
		}
		workload = make([]models.MasterWorkload, 0, len(masters))
		for _, m := range masters {
			orders, err := collect[models.Order](txn, tblOrder, "master", m.ID)
			if err != nil {
				return err
			}
			workload = append(workload, models.MasterWorkload{
				MasterID:    m.ID,
				FullName:    m.FullName,
				TotalOrders: len(orders),
			})
		}
		return nil
	})
	return workload, err
}

// Catalog

func (q *memQueries) CreateService(ctx context.Context, s *models.Service) error {
	return q.write(func(txn *memdb.Txn) error {
		s.ID = q.nextID()
		s.CreatedAt = time.Now()
		return put(txn, tblService, *s)
	})
}

func (q *memQueries) GetService(ctx context.Context, id int64) (s *models.Service, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		s, err = fetch[models.Service](txn, tblService, id)
		return err
	})
	return s, err
}

func (q *memQueries) UpdateService(ctx context.Context, s *models.Service) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Service](txn, tblService, s.ID)
		if err != nil {
			return err
		}
		s.CreatedAt = old.CreatedAt
		return put(txn, tblService, *s)
	})
}

func (q *memQueries) DeleteService(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblService, id); err != nil {
			return err
		}
		used, err := txn.First(tblServiceItem, "service", id)
		if err != nil {
			return err
		}
		if used != nil {
			return fmt.Errorf("service %d: %w", id, ErrProtected)
		}
		return remove(txn, tblService, "id", id)
	})
}

func (q *memQueries) ListServices(ctx context.Context) (rows []models.Service, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Service](txn, tblService, "id")
		return err
	})
	return rows, err
}

// checkArticle enforces unique part articles; the memdb unique index
// would silently replace the other row
func checkArticle(txn *memdb.Txn, p *models.Part) error {
	if p.Article == "" {
		return nil
	}
	raw, err := txn.First(tblPart, "article", p.Article)
	if err != nil {
		return err
	}
	if raw != nil && raw.(*models.Part).ID != p.ID {
		return fmt.Errorf("part article %q: %w", p.Article, ErrDuplicate)
	}
	return nil
}

func (q *memQueries) CreatePart(ctx context.Context, p *models.Part) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := checkArticle(txn, p); err != nil {
			return err
		}
		if p.StockQuantity < 0 {
			return ErrInsufficientStock
		}
		p.ID = q.nextID()
		p.CreatedAt = time.Now()
		return put(txn, tblPart, *p)
	})
}

func (q *memQueries) GetPart(ctx context.Context, id int64) (p *models.Part, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		p, err = fetch[models.Part](txn, tblPart, id)
		return err
	})
	return p, err
}

func (q *memQueries) GetPartStock(ctx context.Context, id int64) (ps *models.PartStock, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		p, err := fetch[models.Part](txn, tblPart, id)
		if err != nil {
			return err
		}
		ps = &models.PartStock{PartID: p.ID, StockQuantity: p.StockQuantity}
		latest, err := txn.Last(tblMovement, "part", id)
		if err != nil {
			return err
		}
		if latest != nil {
			ps.Version = latest.(*models.StockMovement).ID
		}
		return nil
	})
	return ps, err
}

func (q *memQueries) ListParts(ctx context.Context) (rows []models.Part, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Part](txn, tblPart, "id")
		return err
	})
	return rows, err
}

// UpdatePart keeps the stored stock; it only moves through AdjustPartStock
func (q *memQueries) UpdatePart(ctx context.Context, p *models.Part) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Part](txn, tblPart, p.ID)
		if err != nil {
			return err
		}
		if err := checkArticle(txn, p); err != nil {
			return err
		}
		p.StockQuantity = old.StockQuantity
		p.CreatedAt = old.CreatedAt
		return put(txn, tblPart, *p)
	})
}

func (q *memQueries) DeletePart(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblPart, id); err != nil {
			return err
		}
		used, err := txn.First(tblPartItem, "part", id)
		if err != nil {
			return err
		}
		if used != nil {
			return fmt.Errorf("part %d: %w", id, ErrProtected)
		}
		if err := remove(txn, tblMovement, "part", id); err != nil {
			return err
		}
		return remove(txn, tblPart, "id", id)
	})
}

func (q *memQueries) AdjustPartStock(ctx context.Context, partID int64, delta int) (stock int, err error) {
	err = q.write(func(txn *memdb.Txn) error {
		p, err := fetch[models.Part](txn, tblPart, partID)
		if err != nil {
			return err
		}
		if p.StockQuantity+delta < 0 {
			return ErrInsufficientStock
		}
		p.StockQuantity += delta
		stock = p.StockQuantity
		return put(txn, tblPart, *p)
	})
	return stock, err
}

func (q *memQueries) CreateStockMovement(ctx context.Context, m *models.StockMovement) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblPart, m.PartID); err != nil {
			return err
		}
		m.ID = q.nextID()
		m.CreatedAt = time.Now()
		return put(txn, tblMovement, *m)
	})
}

// ListStockMovements returns newest first, as the postgres store does
func (q *memQueries) ListStockMovements(ctx context.Context, partID int64) (rows []models.StockMovement, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.StockMovement](txn, tblMovement, "part", partID)
		return err
	})
	return reversed(rows), err
}

// Orders

func checkOrderRefs(txn *memdb.Txn, o *models.Order) error {
	if err := exists(txn, tblCustomer, o.CustomerID); err != nil {
		return err
	}
	if err := exists(txn, tblVehicle, o.VehicleID); err != nil {
		return err
	}
	if o.MasterID != nil {
		return exists(txn, tblMaster, *o.MasterID)
	}
	return nil
}

func (q *memQueries) CreateOrder(ctx context.Context, o *models.Order) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := checkOrderRefs(txn, o); err != nil {
			return err
		}
		o.ID = q.nextID()
		o.CreatedAt = time.Now()
		o.UpdatedAt = o.CreatedAt
		return put(txn, tblOrder, *o)
	})
}

func (q *memQueries) GetOrder(ctx context.Context, id int64) (o *models.Order, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		o, err = fetch[models.Order](txn, tblOrder, id)
		return err
	})
	return o, err
}

// LockOrder is GetOrder; InTx already serializes writers
func (q *memQueries) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return q.GetOrder(ctx, id)
}

func (q *memQueries) UpdateOrder(ctx context.Context, o *models.Order) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := fetch[models.Order](txn, tblOrder, o.ID)
		if err != nil {
			return err
		}
		if err := checkOrderRefs(txn, o); err != nil {
			return err
		}
		old.CustomerID = o.CustomerID
		old.VehicleID = o.VehicleID
		old.MasterID = o.MasterID
		old.Description = o.Description
		old.Status = o.Status
		old.PaymentType = o.PaymentType
		old.UpdatedAt = time.Now()
		*o = *old
		return put(txn, tblOrder, *old)
	})
}

func (q *memQueries) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	return q.write(func(txn *memdb.Txn) error {
		o, err := fetch[models.Order](txn, tblOrder, id)
		if err != nil {
			return err
		}
		o.TotalAmount = total
		o.UpdatedAt = time.Now()
		return put(txn, tblOrder, *o)
	})
}

func (q *memQueries) UpdateOrderState(ctx context.Context, id int64, status models.OrderStatus, paymentStatus models.PaymentStatus) error {
	return q.write(func(txn *memdb.Txn) error {
		o, err := fetch[models.Order](txn, tblOrder, id)
		if err != nil {
			return err
		}
		o.Status = status
		o.PaymentStatus = paymentStatus
		o.UpdatedAt = time.Now()
		return put(txn, tblOrder, *o)
	})
}

func (q *memQueries) DeleteOrder(ctx context.Context, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, id); err != nil {
			return err
		}
		return deleteOrder(txn, id)
	})
}

// deleteOrder cascades to lines, payments, photos and the audit log.
// Stock movements stay with their order references cleared.
func deleteOrder(txn *memdb.Txn, id int64) error {
	items, err := collect[models.PartItem](txn, tblPartItem, "order", id)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := detachMovements(txn, "part_item", item.ID, func(m *models.StockMovement) { m.PartItemID = nil }); err != nil {
			return err
		}
	}
	if err := detachMovements(txn, "order", id, func(m *models.StockMovement) { m.OrderID = nil }); err != nil {
		return err
	}

	for _, tbl := range []string{tblServiceItem, tblPartItem, tblPayment, tblPhoto, tblOrderEvent} {
		if err := remove(txn, tbl, "order", id); err != nil {
			return err
		}
	}
	return remove(txn, tblOrder, "id", id)
}

func detachMovements(txn *memdb.Txn, index string, id int64, detach func(*models.StockMovement)) error {
	movements, err := collect[models.StockMovement](txn, tblMovement, index, id)
	if err != nil {
		return err
	}
	for _, m := range movements {
		detach(&m)
		if err := put(txn, tblMovement, m); err != nil {
			return err
		}
	}
	return nil
}

func (q *memQueries) ListOrdersByCustomer(ctx context.Context, customerID int64) (rows []models.Order, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Order](txn, tblOrder, "customer", customerID)
		return err
	})
	return reversed(rows), err
}

func (q *memQueries) ListOrdersByVehicle(ctx context.Context, vehicleID int64) (rows []models.Order, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Order](txn, tblOrder, "vehicle", vehicleID)
		return err
	})
	return reversed(rows), err
}

// Service lines

func (q *memQueries) CreateServiceItem(ctx context.Context, item *models.ServiceItem) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, item.OrderID); err != nil {
			return err
		}
		if err := exists(txn, tblService, item.ServiceID); err != nil {
			return err
		}
		item.ID = q.nextID()
		return put(txn, tblServiceItem, *item)
	})
}

// orderScoped fetches a child row and hides rows of other orders
func orderScoped[T any](txn *memdb.Txn, tbl string, orderID, id int64, owner func(*T) int64) (*T, error) {
	row, err := fetch[T](txn, tbl, id)
	if err != nil {
		return nil, err
	}
	if owner(row) != orderID {
		return nil, missing(tbl, id)
	}
	return row, nil
}

func serviceItemOrder(i *models.ServiceItem) int64 { return i.OrderID }
func partItemOrder(i *models.PartItem) int64       { return i.OrderID }
func paymentOrder(p *models.Payment) int64         { return p.OrderID }
func photoOrder(p *models.Photo) int64             { return p.OrderID }

func (q *memQueries) GetServiceItem(ctx context.Context, orderID, id int64) (item *models.ServiceItem, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		item, err = orderScoped(txn, tblServiceItem, orderID, id, serviceItemOrder)
		return err
	})
	return item, err
}

func (q *memQueries) UpdateServiceItem(ctx context.Context, item *models.ServiceItem) error {
	return q.write(func(txn *memdb.Txn) error {
		if _, err := orderScoped(txn, tblServiceItem, item.OrderID, item.ID, serviceItemOrder); err != nil {
			return err
		}
		if err := exists(txn, tblService, item.ServiceID); err != nil {
			return err
		}
		return put(txn, tblServiceItem, *item)
	})
}

func (q *memQueries) DeleteServiceItem(ctx context.Context, orderID, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if _, err := orderScoped(txn, tblServiceItem, orderID, id, serviceItemOrder); err != nil {
			return err
		}
		return remove(txn, tblServiceItem, "id", id)
	})
}

func (q *memQueries) ListServiceItems(ctx context.Context, orderID int64) (rows []models.ServiceItem, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.ServiceItem](txn, tblServiceItem, "order", orderID)
		return err
	})
	return rows, err
}

func (q *memQueries) CompleteServiceItems(ctx context.Context, orderID int64) (n int64, err error) {
	err = q.write(func(txn *memdb.Txn) error {
		items, err := collect[models.ServiceItem](txn, tblServiceItem, "order", orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Status != models.ServiceStatusInProgress && item.Status != models.ServiceStatusChecking {
				continue
			}
			item.Status = models.ServiceStatusDone
			if err := put(txn, tblServiceItem, item); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Part lines

func (q *memQueries) CreatePartItem(ctx context.Context, item *models.PartItem) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, item.OrderID); err != nil {
			return err
		}
		if err := exists(txn, tblPart, item.PartID); err != nil {
			return err
		}
		item.ID = q.nextID()
		return put(txn, tblPartItem, *item)
	})
}

func (q *memQueries) GetPartItem(ctx context.Context, orderID, id int64) (item *models.PartItem, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		item, err = orderScoped(txn, tblPartItem, orderID, id, partItemOrder)
		return err
	})
	return item, err
}

// UpdatePartItem changes quantity, price and discount; the part stays
func (q *memQueries) UpdatePartItem(ctx context.Context, item *models.PartItem) error {
	return q.write(func(txn *memdb.Txn) error {
		old, err := orderScoped(txn, tblPartItem, item.OrderID, item.ID, partItemOrder)
		if err != nil {
			return err
		}
		old.Quantity = item.Quantity
		old.Price = item.Price
		old.Discount = item.Discount
		return put(txn, tblPartItem, *old)
	})
}

func (q *memQueries) DeletePartItem(ctx context.Context, orderID, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if _, err := orderScoped(txn, tblPartItem, orderID, id, partItemOrder); err != nil {
			return err
		}
		if err := detachMovements(txn, "part_item", id, func(m *models.StockMovement) { m.PartItemID = nil }); err != nil {
			return err
		}
		return remove(txn, tblPartItem, "id", id)
	})
}

func (q *memQueries) ListPartItems(ctx context.Context, orderID int64) (rows []models.PartItem, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.PartItem](txn, tblPartItem, "order", orderID)
		return err
	})
	return rows, err
}

// Payments

func (q *memQueries) CreatePayment(ctx context.Context, p *models.Payment) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, p.OrderID); err != nil {
			return err
		}
		p.ID = q.nextID()
		p.PaidAt = time.Now()
		return put(txn, tblPayment, *p)
	})
}

func (q *memQueries) GetPayment(ctx context.Context, orderID, id int64) (p *models.Payment, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		p, err = orderScoped(txn, tblPayment, orderID, id, paymentOrder)
		return err
	})
	return p, err
}

func (q *memQueries) DeletePayment(ctx context.Context, orderID, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if _, err := orderScoped(txn, tblPayment, orderID, id, paymentOrder); err != nil {
			return err
		}
		return remove(txn, tblPayment, "id", id)
	})
}

func (q *memQueries) ListPayments(ctx context.Context, orderID int64) (rows []models.Payment, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Payment](txn, tblPayment, "order", orderID)
		return err
	})
	return rows, err
}

func (q *memQueries) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	payments, err := q.ListPayments(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.SumPayments(payments), nil
}

// Photos

func (q *memQueries) CreatePhoto(ctx context.Context, p *models.Photo) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, p.OrderID); err != nil {
			return err
		}
		p.ID = q.nextID()
		p.UploadedAt = time.Now()
		return put(txn, tblPhoto, *p)
	})
}

func (q *memQueries) DeletePhoto(ctx context.Context, orderID, id int64) error {
	return q.write(func(txn *memdb.Txn) error {
		if _, err := orderScoped(txn, tblPhoto, orderID, id, photoOrder); err != nil {
			return err
		}
		return remove(txn, tblPhoto, "id", id)
	})
}

func (q *memQueries) ListPhotos(ctx context.Context, orderID int64) (rows []models.Photo, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.Photo](txn, tblPhoto, "order", orderID)
		return err
	})
	return rows, err
}

// Audit log and processed events

func (q *memQueries) CreateOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	return q.write(func(txn *memdb.Txn) error {
		if err := exists(txn, tblOrder, e.OrderID); err != nil {
			return err
		}
		e.ID = q.nextID()
		e.CreatedAt = time.Now()
		return put(txn, tblOrderEvent, *e)
	})
}

func (q *memQueries) ListOrderEvents(ctx context.Context, orderID int64) (rows []models.OrderEvent, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		rows, err = collect[models.OrderEvent](txn, tblOrderEvent, "order", orderID)
		return err
	})
	return rows, err
}

func (q *memQueries) IsEventProcessed(ctx context.Context, eventID string) (processed bool, err error) {
	err = q.read(func(txn *memdb.Txn) error {
		raw, err := txn.First(tblProcessed, "id", eventID)
		processed = raw != nil
		return err
	})
	return processed, err
}

func (q *memQueries) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	return q.write(func(txn *memdb.Txn) error {
		raw, err := txn.First(tblProcessed, "id", eventID)
		if err != nil || raw != nil {
			return err
		}
		return put(txn, tblProcessed, models.ProcessedEvent{
			EventID:     eventID,
			EventType:   eventType,
			ProcessedAt: time.Now(),
		})
	})
}
