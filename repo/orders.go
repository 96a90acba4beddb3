package repo

import (
	"errors"
	"fmt"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/Naveen-807/Franky-Docs-sub000/db/bolt"
)

// InsertOrder stores a new conditional order as ACTIVE.
func (s *Store) InsertOrder(order *ConditionalOrder) error {
	order.Status = OrderActive
	order.CreatedAt = s.now()
	return s.db.PutJSON(bucketOrders, order.OrderID, order)
}

// Order returns one conditional order.
func (s *Store) Order(orderID string) (*ConditionalOrder, error) {
	var order ConditionalOrder
	if err := s.db.GetJSON(bucketOrders, orderID, &order); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// ListActiveOrders returns the ACTIVE orders of one document, or of all
// documents when docID is empty.
func (s *Store) ListActiveOrders(docID string) ([]ConditionalOrder, error) {
	return s.listOrders(func(o *ConditionalOrder) bool {
		return o.Status == OrderActive && (docID == "" || o.DocID == docID)
	})
}

// ListOrders returns every order of one document regardless of status.
func (s *Store) ListOrders(docID string) ([]ConditionalOrder, error) {
	return s.listOrders(func(o *ConditionalOrder) bool {
		return docID == "" || o.DocID == docID
	})
}

func (s *Store) listOrders(filter func(*ConditionalOrder) bool) ([]ConditionalOrder, error) {
	var orders []ConditionalOrder
	err := s.db.ForEachJSON(bucketOrders,
		func() interface{} { return &ConditionalOrder{} },
		func(key string, value interface{}) error {
			order := value.(*ConditionalOrder)
			if filter(order) {
				orders = append(orders, *order)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderID < orders[j].OrderID
	})
	return orders, nil
}

// TriggerOrderWithCommand transitions an order ACTIVE to TRIGGERED and
// emits its spawned command in one transaction. An order that is no
// longer ACTIVE returns an error and spawns nothing, which is what makes
// triggering one-shot.
func (s *Store) TriggerOrderWithCommand(orderID string, cmd *Command) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var order ConditionalOrder
		if err := bolt.GetJSONTx(tx, bucketOrders, orderID, &order); err != nil {
			if errors.Is(err, bolt.ErrKeyNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return err
		}
		if order.Status != OrderActive {
			return fmt.Errorf("order %s is %s, not ACTIVE", orderID, order.Status)
		}

		seq, err := bolt.NextSequenceTx(tx, bucketCommands)
		if err != nil {
			return err
		}
		cmd.Seq = seq
		cmd.CreatedAt = s.now()
		cmd.UpdatedAt = cmd.CreatedAt
		if err := bolt.PutJSONTx(tx, bucketCommands, cmd.CmdID, cmd); err != nil {
			return err
		}

		order.Status = OrderTriggered
		order.TriggeredCmdID = cmd.CmdID
		return bolt.PutJSONTx(tx, bucketOrders, orderID, order)
	})
}

// CancelOrder marks an order CANCELLED. Only ACTIVE orders can be
// cancelled.
func (s *Store) CancelOrder(orderID string) error {
	var order ConditionalOrder
	if err := s.db.GetJSON(bucketOrders, orderID, &order); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return err
	}
	if order.Status != OrderActive {
		return fmt.Errorf("order %s is %s, not ACTIVE", orderID, order.Status)
	}
	order.Status = OrderCancelled
	return s.db.PutJSON(bucketOrders, orderID, order)
}
