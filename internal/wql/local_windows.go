//go:build windows

package wql

import (
	"context"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// queryLocal executes a WQL query through COM/OLE.
func queryLocal(ctx context.Context, namespace, query string) ([]Row, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		// S_FALSE means COM is already initialized on this thread
		if !ok || oleErr.Code() != 0x00000001 {
			return nil, fmt.Errorf("COM initialization failed: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("create WMI locator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("get IDispatch: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", ".", namespace)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", namespace, err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countRaw, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return nil, fmt.Errorf("get count: %w", err)
	}
	count := int(countRaw.Val)

	rows := make([]Row, 0, count)
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return rows, ctx.Err()
		default:
		}

		itemRaw, err := oleutil.CallMethod(result, "ItemIndex", i)
		if err != nil {
			continue
		}
		item := itemRaw.ToIDispatch()
		rows = append(rows, readProperties(item))
		item.Release()
	}

	return rows, nil
}

// readProperties walks Properties_ of one SWbemObject into a Row.
func readProperties(item *ole.IDispatch) Row {
	row := make(Row)

	propsRaw, err := oleutil.GetProperty(item, "Properties_")
	if err != nil {
		return row
	}
	props := propsRaw.ToIDispatch()
	defer props.Release()

	countRaw, err := oleutil.GetProperty(props, "Count")
	if err != nil {
		return row
	}

	for i := 0; i < int(countRaw.Val); i++ {
		propRaw, err := oleutil.CallMethod(props, "ItemIndex", i)
		if err != nil {
			continue
		}
		prop := propRaw.ToIDispatch()

		nameRaw, err := oleutil.GetProperty(prop, "Name")
		if err != nil {
			prop.Release()
			continue
		}
		valRaw, err := oleutil.GetProperty(prop, "Value")
		if err != nil {
			prop.Release()
			continue
		}

		row[nameRaw.ToString()] = variantValue(valRaw)
		prop.Release()
	}

	return row
}

// variantValue converts a COM variant to a plain Go value.
func variantValue(v *ole.VARIANT) interface{} {
	switch v.VT {
	case ole.VT_NULL, ole.VT_EMPTY:
		return nil
	case ole.VT_BOOL:
		return v.Val != 0
	case ole.VT_I4, ole.VT_INT:
		return int32(v.Val)
	case ole.VT_UI4, ole.VT_UINT:
		return uint32(v.Val)
	case ole.VT_BSTR:
		return v.ToString()
	default:
		return v.Value()
	}
}
