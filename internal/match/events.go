package match

// event is a pending broadcast, collected while a game's lock is held and
// delivered only after the mutation is durably applied and the lock
// released.
type event struct {
	scope   eventScope
	gameID  string
	userID  string
	name    string
	payload any
}

type eventScope int

const (
	scopeRoom eventScope = iota
	scopeRoomExcept
	scopeUser
)

func roomEvent(gameID, name string, payload any) event {
	return event{scope: scopeRoom, gameID: gameID, name: name, payload: payload}
}

func roomExceptEvent(gameID, exceptUserID, name string, payload any) event {
	return event{scope: scopeRoomExcept, gameID: gameID, userID: exceptUserID, name: name, payload: payload}
}

func userEvent(gameID, userID, name string, payload any) event {
	return event{scope: scopeUser, gameID: gameID, userID: userID, name: name, payload: payload}
}

func (m *Manager) emit(evs []event) {
	if len(evs) == 0 {
		return
	}
	m.bcMu.RLock()
	bc := m.bc
	m.bcMu.RUnlock()
	for _, ev := range evs {
		switch ev.scope {
		case scopeRoomExcept:
			bc.ToRoomExcept(ev.gameID, ev.userID, ev.name, ev.payload)
		case scopeUser:
			bc.ToUser(ev.gameID, ev.userID, ev.name, ev.payload)
		default:
			bc.ToRoom(ev.gameID, ev.name, ev.payload)
		}
	}
}
