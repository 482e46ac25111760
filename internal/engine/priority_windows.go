//go:build windows

package engine

import "golang.org/x/sys/windows"

func (p Priority) class() uint32 {
	switch p {
	case PriorityIdle:
		return windows.IDLE_PRIORITY_CLASS
	case PriorityBelowNormal:
		return windows.BELOW_NORMAL_PRIORITY_CLASS
	case PriorityAboveNormal:
		return windows.ABOVE_NORMAL_PRIORITY_CLASS
	case PriorityHigh:
		return windows.HIGH_PRIORITY_CLASS
	case PriorityRealTime:
		return windows.REALTIME_PRIORITY_CLASS
	default:
		return windows.NORMAL_PRIORITY_CLASS
	}
}

// setPriority applies the priority class to the child.
func setPriority(pid int, p Priority) error {
	if p == PriorityNormal {
		return nil
	}

	h, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	return windows.SetPriorityClass(h, p.class())
}
